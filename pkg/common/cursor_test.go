package common

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "chat-backend/pkg/errors"
)

func TestCursorRoundtrip(t *testing.T) {
	key := map[string]types.AttributeValue{
		"chatId":    &types.AttributeValueMemberS{Value: "room-1"},
		"chatKey":   &types.AttributeValueMemberS{Value: "message_1700000000000_abc"},
		"updatedAt": &types.AttributeValueMemberN{Value: "1700000000000"},
	}

	cursor, err := EncodeCursor(key)
	require.NoError(t, err)
	require.NotEmpty(t, cursor)

	decoded, err := DecodeCursor(cursor)
	require.NoError(t, err)
	assert.Equal(t, key, decoded)
}

func TestEmptyKeyYieldsEmptyCursor(t *testing.T) {
	cursor, err := EncodeCursor(nil)
	require.NoError(t, err)
	assert.Empty(t, cursor)

	key, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestEncodeCursorRejectsNonKeyTypes(t *testing.T) {
	_, err := EncodeCursor(map[string]types.AttributeValue{
		"flag": &types.AttributeValueMemberBOOL{Value: true},
	})
	assert.Error(t, err)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("not-base64-!!!")
	assert.True(t, apperrors.IsValidation(err))

	// Valid base64 of invalid JSON.
	_, err = DecodeCursor("bm90LWpzb24")
	assert.True(t, apperrors.IsValidation(err))
}
