package common

import (
	"encoding/base64"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	apperrors "chat-backend/pkg/errors"
)

// cursorValue is the wire form of a single key attribute. Key attributes are
// only ever strings or numbers, so the codec covers just those two members.
type cursorValue struct {
	S *string `json:"s,omitempty"`
	N *string `json:"n,omitempty"`
}

// EncodeCursor converts a DynamoDB LastEvaluatedKey into an opaque pagination
// cursor safe to hand to clients. An empty key yields an empty cursor.
func EncodeCursor(key map[string]types.AttributeValue) (string, error) {
	if len(key) == 0 {
		return "", nil
	}

	wire := make(map[string]cursorValue, len(key))
	for name, av := range key {
		switch v := av.(type) {
		case *types.AttributeValueMemberS:
			s := v.Value
			wire[name] = cursorValue{S: &s}
		case *types.AttributeValueMemberN:
			n := v.Value
			wire[name] = cursorValue{N: &n}
		default:
			return "", apperrors.NewInternalError("unsupported key attribute type in pagination cursor")
		}
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		return "", apperrors.NewInternalError("failed to encode pagination cursor").WithCause(err)
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor converts an opaque pagination cursor back into an
// ExclusiveStartKey. An empty cursor yields a nil key.
func DecodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	if cursor == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, apperrors.NewValidationError("malformed pagination cursor").WithCause(err)
	}

	var wire map[string]cursorValue
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, apperrors.NewValidationError("malformed pagination cursor").WithCause(err)
	}

	key := make(map[string]types.AttributeValue, len(wire))
	for name, cv := range wire {
		switch {
		case cv.S != nil:
			key[name] = &types.AttributeValueMemberS{Value: *cv.S}
		case cv.N != nil:
			key[name] = &types.AttributeValueMemberN{Value: *cv.N}
		default:
			return nil, apperrors.NewValidationError("malformed pagination cursor")
		}
	}

	return key, nil
}
