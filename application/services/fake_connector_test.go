package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	store "chat-backend/infrastructure/dynamodb"
)

// fakeConnector is an in-memory store that interprets the expression shapes
// the query builder compiles: key equality and begins_with conditions,
// equality and IN filters, SET updates with list_append, and
// attribute_not_exists put conditions. Enough store semantics for service
// tests without a live table.
type fakeConnector struct {
	mu     sync.Mutex
	tables map[string]*fakeTable

	// failNext, when set, fails the next matching primitive once.
	failNext map[string]error
}

type fakeTable struct {
	partitionKey string
	sortKey      string
	indexes      map[string]fakeIndex
	items        []store.Item
}

type fakeIndex struct {
	partitionKey string
	sortKey      string
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		tables:   map[string]*fakeTable{},
		failNext: map[string]error{},
	}
}

func (f *fakeConnector) addTable(name, partitionKey, sortKey string) *fakeTable {
	t := &fakeTable{
		partitionKey: partitionKey,
		sortKey:      sortKey,
		indexes:      map[string]fakeIndex{},
	}
	f.tables[name] = t
	return t
}

func (t *fakeTable) addIndex(name, partitionKey, sortKey string) {
	t.indexes[name] = fakeIndex{partitionKey: partitionKey, sortKey: sortKey}
}

func (f *fakeConnector) table(name string) *fakeTable {
	t, ok := f.tables[name]
	if !ok {
		panic(fmt.Sprintf("fake connector: unknown table %q", name))
	}
	return t
}

func (f *fakeConnector) takeFailure(primitive string) error {
	if err, ok := f.failNext[primitive]; ok {
		delete(f.failNext, primitive)
		return err
	}
	return nil
}

func (t *fakeTable) keyOf(item store.Item) string {
	pk := avString(item[t.partitionKey])
	if t.sortKey == "" {
		return pk
	}
	return pk + "\x00" + avString(item[t.sortKey])
}

func (t *fakeTable) find(key store.Item) (int, bool) {
	want := t.keyOf(key)
	for i, item := range t.items {
		if t.keyOf(item) == want {
			return i, true
		}
	}
	return 0, false
}

func (t *fakeTable) put(item store.Item) {
	if i, ok := t.find(item); ok {
		t.items[i] = item
		return
	}
	t.items = append(t.items, cloneItem(item))
}

func (f *fakeConnector) GetItem(ctx context.Context, input *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("GetItem"); err != nil {
		return nil, err
	}

	t := f.table(*input.TableName)
	if i, ok := t.find(input.Key); ok {
		return &dynamodb.GetItemOutput{Item: cloneItem(t.items[i])}, nil
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (f *fakeConnector) PutItem(ctx context.Context, input *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("PutItem"); err != nil {
		return nil, err
	}

	t := f.table(*input.TableName)
	if input.ConditionExpression != nil && strings.Contains(*input.ConditionExpression, "attribute_not_exists") {
		if _, exists := t.find(input.Item); exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	t.put(input.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeConnector) UpdateItem(ctx context.Context, input *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("UpdateItem"); err != nil {
		return nil, err
	}

	t := f.table(*input.TableName)
	i, ok := t.find(input.Key)
	if !ok {
		// Upsert semantics: an update against a missing key creates it.
		t.put(cloneItem(input.Key))
		i, _ = t.find(input.Key)
	}
	item := t.items[i]

	if input.UpdateExpression != nil {
		for _, clause := range splitUpdateClauses(*input.UpdateExpression) {
			name, value := applyUpdateClause(clause, item, input.ExpressionAttributeNames, input.ExpressionAttributeValues)
			item[name] = value
		}
	}
	t.items[i] = item

	return &dynamodb.UpdateItemOutput{Attributes: cloneItem(item)}, nil
}

func (f *fakeConnector) DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("DeleteItem"); err != nil {
		return nil, err
	}

	t := f.table(*input.TableName)
	if i, ok := t.find(input.Key); ok {
		t.items = append(t.items[:i], t.items[i+1:]...)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeConnector) Query(ctx context.Context, input *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("Query"); err != nil {
		return nil, err
	}

	t := f.table(*input.TableName)
	partitionKey, sortKey := t.partitionKey, t.sortKey
	if input.IndexName != nil {
		idx, ok := t.indexes[*input.IndexName]
		if !ok {
			panic(fmt.Sprintf("fake connector: unknown index %q", *input.IndexName))
		}
		partitionKey, sortKey = idx.partitionKey, idx.sortKey
	}

	keyMatch := parseConditions(*input.KeyConditionExpression, input.ExpressionAttributeNames, input.ExpressionAttributeValues)

	matched := make([]store.Item, 0)
	for _, item := range t.items {
		if keyMatch(item) {
			matched = append(matched, item)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return avLess(matched[i][sortKey], matched[j][sortKey])
	})
	if input.ScanIndexForward != nil && !*input.ScanIndexForward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	start := 0
	if len(input.ExclusiveStartKey) > 0 {
		resumeFrom := avString(input.ExclusiveStartKey[partitionKey]) + "\x00" + avString(input.ExclusiveStartKey[sortKey])
		for i, item := range matched {
			if avString(item[partitionKey])+"\x00"+avString(item[sortKey]) == resumeFrom {
				start = i + 1
				break
			}
		}
	}
	matched = matched[start:]

	var lastEvaluated store.Item
	if input.Limit != nil && int(*input.Limit) < len(matched) {
		matched = matched[:*input.Limit]
		last := matched[len(matched)-1]
		lastEvaluated = store.Item{partitionKey: last[partitionKey]}
		if sortKey != "" {
			lastEvaluated[sortKey] = last[sortKey]
		}
	}

	// Filters apply after the limit, like the real store.
	var filterMatch func(store.Item) bool
	if input.FilterExpression != nil {
		filterMatch = parseConditions(*input.FilterExpression, input.ExpressionAttributeNames, input.ExpressionAttributeValues)
	}

	out := &dynamodb.QueryOutput{LastEvaluatedKey: lastEvaluated}
	for _, item := range matched {
		if filterMatch != nil && !filterMatch(item) {
			continue
		}
		out.Items = append(out.Items, cloneItem(item))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (f *fakeConnector) Scan(ctx context.Context, input *dynamodb.ScanInput) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("Scan"); err != nil {
		return nil, err
	}

	t := f.table(*input.TableName)
	var filterMatch func(store.Item) bool
	if input.FilterExpression != nil {
		filterMatch = parseConditions(*input.FilterExpression, input.ExpressionAttributeNames, input.ExpressionAttributeValues)
	}

	out := &dynamodb.ScanOutput{}
	for _, item := range t.items {
		if filterMatch != nil && !filterMatch(item) {
			continue
		}
		out.Items = append(out.Items, cloneItem(item))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (f *fakeConnector) BatchGetItem(ctx context.Context, input *dynamodb.BatchGetItemInput) (*dynamodb.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("BatchGetItem"); err != nil {
		return nil, err
	}

	out := &dynamodb.BatchGetItemOutput{Responses: map[string][]store.Item{}}
	for tableName, req := range input.RequestItems {
		t := f.table(tableName)
		for _, key := range req.Keys {
			if i, ok := t.find(key); ok {
				out.Responses[tableName] = append(out.Responses[tableName], cloneItem(t.items[i]))
			}
		}
	}
	return out, nil
}

func (f *fakeConnector) BatchWriteItem(ctx context.Context, input *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("BatchWriteItem"); err != nil {
		return nil, err
	}

	for tableName, requests := range input.RequestItems {
		t := f.table(tableName)
		for _, req := range requests {
			switch {
			case req.PutRequest != nil:
				t.put(req.PutRequest.Item)
			case req.DeleteRequest != nil:
				if i, ok := t.find(req.DeleteRequest.Key); ok {
					t.items = append(t.items[:i], t.items[i+1:]...)
				}
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

/* ================== expression interpretation ================== */

// parseConditions compiles an AND-joined expression of "#k = :k",
// "begins_with(#k, :k)", and "#k IN (:k1, ...)" clauses into a predicate.
func parseConditions(expr string, names map[string]string, values store.Item) func(store.Item) bool {
	clauses := strings.Split(expr, " AND ")
	preds := make([]func(store.Item) bool, 0, len(clauses))

	for _, clause := range clauses {
		clause := strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "begins_with("):
			inner := strings.TrimSuffix(strings.TrimPrefix(clause, "begins_with("), ")")
			parts := strings.SplitN(inner, ", ", 2)
			attr, want := names[parts[0]], avString(values[parts[1]])
			preds = append(preds, func(item store.Item) bool {
				return strings.HasPrefix(avString(item[attr]), want)
			})

		case strings.Contains(clause, " IN ("):
			parts := strings.SplitN(clause, " IN (", 2)
			attr := names[strings.TrimSpace(parts[0])]
			members := map[string]bool{}
			for _, placeholder := range strings.Split(strings.TrimSuffix(parts[1], ")"), ", ") {
				members[avString(values[placeholder])] = true
			}
			preds = append(preds, func(item store.Item) bool {
				return members[avString(item[attr])]
			})

		case strings.Contains(clause, " = "):
			parts := strings.SplitN(clause, " = ", 2)
			attr, want := names[parts[0]], avString(values[parts[1]])
			preds = append(preds, func(item store.Item) bool {
				return avString(item[attr]) == want
			})

		default:
			panic(fmt.Sprintf("fake connector: unsupported clause %q", clause))
		}
	}

	return func(item store.Item) bool {
		for _, pred := range preds {
			if !pred(item) {
				return false
			}
		}
		return true
	}
}

// splitUpdateClauses splits "SET a, b, c" on clause boundaries, rejoining
// fragments produced by commas inside list_append argument lists.
func splitUpdateClauses(expr string) []string {
	expr = strings.TrimPrefix(expr, "SET ")
	fragments := strings.Split(expr, ", ")
	clauses := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		if strings.HasPrefix(fragment, "#") || len(clauses) == 0 {
			clauses = append(clauses, fragment)
		} else {
			clauses[len(clauses)-1] += ", " + fragment
		}
	}
	return clauses
}

func applyUpdateClause(clause string, item store.Item, names map[string]string, values store.Item) (string, types.AttributeValue) {
	parts := strings.SplitN(clause, " = ", 2)
	attr := names[strings.TrimSpace(parts[0])]
	rhs := strings.TrimSpace(parts[1])

	if strings.HasPrefix(rhs, "list_append(") {
		inner := strings.TrimSuffix(strings.TrimPrefix(rhs, "list_append("), ")")
		args := strings.SplitN(inner, ", ", 2)
		current, _ := item[names[args[0]]].(*types.AttributeValueMemberL)
		appended, _ := values[args[1]].(*types.AttributeValueMemberL)
		merged := &types.AttributeValueMemberL{}
		if current != nil {
			merged.Value = append(merged.Value, current.Value...)
		}
		if appended != nil {
			merged.Value = append(merged.Value, appended.Value...)
		}
		return attr, merged
	}

	return attr, values[rhs]
}

/* ======================= value helpers ======================= */

func avString(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", av)
	}
}

func avLess(a, b types.AttributeValue) bool {
	na, aIsN := a.(*types.AttributeValueMemberN)
	nb, bIsN := b.(*types.AttributeValueMemberN)
	if aIsN && bIsN {
		fa, _ := strconv.ParseFloat(na.Value, 64)
		fb, _ := strconv.ParseFloat(nb.Value, 64)
		return fa < fb
	}
	return avString(a) < avString(b)
}

func cloneItem(item store.Item) store.Item {
	clone := make(store.Item, len(item))
	for k, v := range item {
		clone[k] = v
	}
	return clone
}
