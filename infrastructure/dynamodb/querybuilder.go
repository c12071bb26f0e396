// Package dynamodb contains the store connector and the query builder that
// compiles declarative conditions into native DynamoDB request expressions.
package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	apperrors "chat-backend/pkg/errors"
)

// RequestKind selects which store primitive a builder compiles to.
type RequestKind string

const (
	RequestQuery       RequestKind = "Query"
	RequestScan        RequestKind = "Scan"
	RequestBatchGet    RequestKind = "BatchGetItem"
	RequestBatchWrite  RequestKind = "BatchWriteItem"
	RequestBatchDelete RequestKind = "BatchDeleteItem"
	RequestGet         RequestKind = "GetItem"
	RequestPut         RequestKind = "PutItem"
	RequestUpdate      RequestKind = "UpdateItem"
	RequestDelete      RequestKind = "DeleteItem"
)

// Comparison is a condition comparator over a key or filter attribute.
type Comparison string

const (
	ComparisonEqual          Comparison = "EQ"
	ComparisonLessThan       Comparison = "LT"
	ComparisonLessOrEqual    Comparison = "LE"
	ComparisonGreaterThan    Comparison = "GT"
	ComparisonGreaterOrEqual Comparison = "GE"
	ComparisonBeginsWith     Comparison = "BEGINS_WITH"
	ComparisonBetween        Comparison = "BETWEEN"
	ComparisonIn             Comparison = "IN"
)

// KeyCondition is a single condition over one attribute. Values are marshaled
// to attribute values when the condition is added to a builder.
type KeyCondition struct {
	KeyName  string
	Operator Comparison
	Values   []interface{}
}

// UpdateFunction is a store-side mutation applied to an attribute's current
// value, as opposed to a plain SET assignment.
type UpdateFunction string

const (
	UpdateFunctionListAppend UpdateFunction = "LIST_APPEND"
)

// FunctionUpdateField describes one function-based update mutation.
type FunctionUpdateField struct {
	Function      UpdateFunction
	AttributeName string
	Value         interface{}
}

// Builder error codes
const (
	CodeMissingKey          = "MISSING_KEY"
	CodeUnsupportedOperator = "UNSUPPORTED_OPERATOR"
)

// Request is the compiled form of a builder: exactly one input is non-nil,
// matching the builder's kind. Batch deletes compile to a BatchWriteItemInput
// carrying delete requests.
type Request struct {
	Kind       RequestKind
	Query      *dynamodb.QueryInput
	Scan       *dynamodb.ScanInput
	BatchGet   *dynamodb.BatchGetItemInput
	BatchWrite *dynamodb.BatchWriteItemInput
	Get        *dynamodb.GetItemInput
	Put        *dynamodb.PutItemInput
	Update     *dynamodb.UpdateItemInput
	Delete     *dynamodb.DeleteItemInput
}

// Result is the connector-native outcome of executing a compiled request.
// Only the fields matching the request kind are populated.
type Result struct {
	Item             Item
	Items            []Item
	Responses        map[string][]Item
	Attributes       Item
	LastEvaluatedKey Item
	Count            int32
}

type condition struct {
	keyName  string
	operator Comparison
	values   []types.AttributeValue
}

// QueryBuilder accumulates target, keys, conditions, mutations, and
// pagination controls, then compiles them into one store request. All
// configuration methods are chainable. Marshaling failures are deferred and
// surfaced by Build.
type QueryBuilder struct {
	kind      RequestKind
	connector Connector

	table string
	index string

	keys []Item

	sortConditions []condition

	directUpdateFields   map[string]types.AttributeValue
	functionUpdateFields []struct {
		function      UpdateFunction
		attributeName string
		value         types.AttributeValue
	}

	filterFields     map[string]types.AttributeValue
	conditionFilters []condition

	notExistsAttrs []string

	limit       *int32
	scanForward *bool
	startKey    Item

	err error
}

// NewQueryBuilder creates a builder that compiles to the given request kind
// and executes through the given connector.
func NewQueryBuilder(kind RequestKind, connector Connector) *QueryBuilder {
	return &QueryBuilder{
		kind:         kind,
		connector:    connector,
		filterFields: map[string]types.AttributeValue{},
	}
}

// TableName sets the target table (overwrite)
func (b *QueryBuilder) TableName(table string) *QueryBuilder {
	b.table = table
	return b
}

// Index sets the target secondary index (overwrite)
func (b *QueryBuilder) Index(index string) *QueryBuilder {
	b.index = index
	return b
}

// Key appends one key map or full item. Structs and maps are marshaled with
// their dynamodbav tags; already-marshaled items pass through unchanged.
func (b *QueryBuilder) Key(key interface{}) *QueryBuilder {
	item, err := marshalItem(key)
	if err != nil {
		b.recordErr(err)
		return b
	}
	b.keys = append(b.keys, item)
	return b
}

// Keys appends multiple key maps or full items
func (b *QueryBuilder) Keys(keys ...interface{}) *QueryBuilder {
	for _, key := range keys {
		b.Key(key)
	}
	return b
}

// SortKeyCondition appends a condition over the sort key. Multiple conditions
// are AND-combined with the partition-key clauses.
func (b *QueryBuilder) SortKeyCondition(cond KeyCondition) *QueryBuilder {
	mc, err := b.marshalCondition(cond)
	if err != nil {
		b.recordErr(err)
		return b
	}
	b.sortConditions = append(b.sortConditions, mc)
	return b
}

// FilterFields merges attribute→value equality filters into the accumulated
// filter state.
func (b *QueryBuilder) FilterFields(fields map[string]interface{}) *QueryBuilder {
	for name, value := range fields {
		av, err := marshalValue(value)
		if err != nil {
			b.recordErr(err)
			return b
		}
		b.filterFields[name] = av
	}
	return b
}

// ConditionFilterFields appends a structured filter condition supporting
// non-equality comparators, notably set-membership.
func (b *QueryBuilder) ConditionFilterFields(cond KeyCondition) *QueryBuilder {
	mc, err := b.marshalCondition(cond)
	if err != nil {
		b.recordErr(err)
		return b
	}
	b.conditionFilters = append(b.conditionFilters, mc)
	return b
}

// UpdateFields sets the direct SET assignments for an update request
// (overwrite as a batch map).
func (b *QueryBuilder) UpdateFields(fields map[string]interface{}) *QueryBuilder {
	direct := make(map[string]types.AttributeValue, len(fields))
	for name, value := range fields {
		av, err := marshalValue(value)
		if err != nil {
			b.recordErr(err)
			return b
		}
		direct[name] = av
	}
	b.directUpdateFields = direct
	return b
}

// FunctionUpdateFields appends function-based mutations that reference the
// attribute's current value (e.g. list_append).
func (b *QueryBuilder) FunctionUpdateFields(fields ...FunctionUpdateField) *QueryBuilder {
	for _, f := range fields {
		av, err := marshalValue(f.Value)
		if err != nil {
			b.recordErr(err)
			return b
		}
		b.functionUpdateFields = append(b.functionUpdateFields, struct {
			function      UpdateFunction
			attributeName string
			value         types.AttributeValue
		}{f.Function, f.AttributeName, av})
	}
	return b
}

// ConditionNotExists guards a put with attribute_not_exists conditions so a
// concurrent writer cannot silently overwrite an existing item.
func (b *QueryBuilder) ConditionNotExists(attributeNames ...string) *QueryBuilder {
	b.notExistsAttrs = append(b.notExistsAttrs, attributeNames...)
	return b
}

// Limit caps the number of evaluated items (query/scan only)
func (b *QueryBuilder) Limit(limit int32) *QueryBuilder {
	b.limit = aws.Int32(limit)
	return b
}

// ScanIndexForward sets ascending (true) or descending (false) traversal
func (b *QueryBuilder) ScanIndexForward(forward bool) *QueryBuilder {
	b.scanForward = aws.Bool(forward)
	return b
}

// ExclusiveStartKey resumes a query/scan from an opaque pagination key
func (b *QueryBuilder) ExclusiveStartKey(key Item) *QueryBuilder {
	if len(key) > 0 {
		b.startKey = key
	}
	return b
}

// Build compiles the accumulated configuration into one store request.
func (b *QueryBuilder) Build() (*Request, error) {
	if b.err != nil {
		return nil, b.err
	}

	req := &Request{Kind: b.kind}
	var err error

	switch b.kind {
	case RequestQuery:
		req.Query, err = b.buildQuery()
	case RequestScan:
		req.Scan, err = b.buildScan()
	case RequestBatchGet:
		req.BatchGet, err = b.buildBatchGet()
	case RequestBatchWrite:
		req.BatchWrite, err = b.buildBatchWrite()
	case RequestBatchDelete:
		req.BatchWrite, err = b.buildBatchDelete()
	case RequestGet:
		req.Get, err = b.buildGet()
	case RequestPut:
		req.Put, err = b.buildPut()
	case RequestUpdate:
		req.Update, err = b.buildUpdate()
	case RequestDelete:
		req.Delete, err = b.buildDelete()
	default:
		err = apperrors.NewValidationError(fmt.Sprintf("unknown request kind %q", b.kind))
	}
	if err != nil {
		return nil, err
	}

	return req, nil
}

// Execute compiles the request and dispatches it to the matching connector
// primitive. Connector failures are surfaced unchanged.
func (b *QueryBuilder) Execute(ctx context.Context) (*Result, error) {
	req, err := b.Build()
	if err != nil {
		return nil, err
	}

	switch req.Kind {
	case RequestQuery:
		out, err := b.connector.Query(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		return &Result{Items: out.Items, LastEvaluatedKey: out.LastEvaluatedKey, Count: out.Count}, nil

	case RequestScan:
		out, err := b.connector.Scan(ctx, req.Scan)
		if err != nil {
			return nil, err
		}
		return &Result{Items: out.Items, LastEvaluatedKey: out.LastEvaluatedKey, Count: out.Count}, nil

	case RequestBatchGet:
		out, err := b.connector.BatchGetItem(ctx, req.BatchGet)
		if err != nil {
			return nil, err
		}
		return &Result{Responses: out.Responses}, nil

	case RequestBatchWrite, RequestBatchDelete:
		if _, err := b.connector.BatchWriteItem(ctx, req.BatchWrite); err != nil {
			return nil, err
		}
		return &Result{}, nil

	case RequestGet:
		out, err := b.connector.GetItem(ctx, req.Get)
		if err != nil {
			return nil, err
		}
		return &Result{Item: out.Item}, nil

	case RequestPut:
		if _, err := b.connector.PutItem(ctx, req.Put); err != nil {
			return nil, err
		}
		return &Result{}, nil

	case RequestUpdate:
		out, err := b.connector.UpdateItem(ctx, req.Update)
		if err != nil {
			return nil, err
		}
		return &Result{Attributes: out.Attributes}, nil

	case RequestDelete:
		if _, err := b.connector.DeleteItem(ctx, req.Delete); err != nil {
			return nil, err
		}
		return &Result{}, nil
	}

	return nil, apperrors.NewInternalError(fmt.Sprintf("unreachable request kind %q", req.Kind))
}

/* ======================= per-kind builders ======================= */

func (b *QueryBuilder) buildQuery() (*dynamodb.QueryInput, error) {
	in := &dynamodb.QueryInput{
		TableName:         aws.String(b.table),
		Limit:             b.limit,
		ScanIndexForward:  b.scanForward,
		ExclusiveStartKey: b.startKey,
	}
	if b.index != "" {
		in.IndexName = aws.String(b.index)
	}

	names := map[string]string{}
	values := Item{}

	var keyExpr strings.Builder

	// Partition-key equality clauses seeded from the accumulated key maps.
	for _, key := range b.keys {
		for _, name := range sortedNames(key) {
			appendClause(&keyExpr, fmt.Sprintf("#%s = :%s", name, name))
			names["#"+name] = name
			values[":"+name] = key[name]
		}
	}

	for _, cond := range b.sortConditions {
		clause, err := renderCondition(cond, names, values, false)
		if err != nil {
			return nil, err
		}
		appendClause(&keyExpr, clause)
	}

	if keyExpr.Len() > 0 {
		in.KeyConditionExpression = aws.String(keyExpr.String())
	}

	filter, err := b.buildFilterExpression(names, values)
	if err != nil {
		return nil, err
	}
	if filter != "" {
		in.FilterExpression = aws.String(filter)
	}

	if len(names) > 0 {
		in.ExpressionAttributeNames = names
	}
	if len(values) > 0 {
		in.ExpressionAttributeValues = values
	}

	return in, nil
}

func (b *QueryBuilder) buildScan() (*dynamodb.ScanInput, error) {
	in := &dynamodb.ScanInput{
		TableName:         aws.String(b.table),
		Limit:             b.limit,
		ExclusiveStartKey: b.startKey,
	}

	names := map[string]string{}
	values := Item{}

	filter, err := b.buildFilterExpression(names, values)
	if err != nil {
		return nil, err
	}
	if filter != "" {
		in.FilterExpression = aws.String(filter)
	}
	if len(names) > 0 {
		in.ExpressionAttributeNames = names
	}
	if len(values) > 0 {
		in.ExpressionAttributeValues = values
	}

	return in, nil
}

func (b *QueryBuilder) buildFilterExpression(names map[string]string, values Item) (string, error) {
	var filterExpr strings.Builder

	for _, name := range sortedNames(b.filterFields) {
		appendClause(&filterExpr, fmt.Sprintf("#%s = :%s", name, name))
		names["#"+name] = name
		values[":"+name] = b.filterFields[name]
	}

	for _, cond := range b.conditionFilters {
		clause, err := renderCondition(cond, names, values, true)
		if err != nil {
			return "", err
		}
		appendClause(&filterExpr, clause)
	}

	return filterExpr.String(), nil
}

func (b *QueryBuilder) buildBatchGet() (*dynamodb.BatchGetItemInput, error) {
	if len(b.keys) == 0 {
		return nil, errMissingKey(b.kind)
	}

	return &dynamodb.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{
			b.table: {Keys: b.keys},
		},
	}, nil
}

func (b *QueryBuilder) buildBatchWrite() (*dynamodb.BatchWriteItemInput, error) {
	if len(b.keys) == 0 {
		return nil, errMissingKey(b.kind)
	}

	requests := make([]types.WriteRequest, 0, len(b.keys))
	for _, item := range b.keys {
		requests = append(requests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item},
		})
	}

	return &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{b.table: requests},
	}, nil
}

func (b *QueryBuilder) buildBatchDelete() (*dynamodb.BatchWriteItemInput, error) {
	if len(b.keys) == 0 {
		return nil, errMissingKey(b.kind)
	}

	requests := make([]types.WriteRequest, 0, len(b.keys))
	for _, key := range b.keys {
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: key},
		})
	}

	return &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{b.table: requests},
	}, nil
}

func (b *QueryBuilder) buildGet() (*dynamodb.GetItemInput, error) {
	if len(b.keys) == 0 {
		return nil, errMissingKey(b.kind)
	}

	return &dynamodb.GetItemInput{
		TableName: aws.String(b.table),
		Key:       b.keys[0],
	}, nil
}

func (b *QueryBuilder) buildPut() (*dynamodb.PutItemInput, error) {
	if len(b.keys) == 0 {
		return nil, errMissingKey(b.kind)
	}

	in := &dynamodb.PutItemInput{
		TableName: aws.String(b.table),
		Item:      b.keys[0],
	}

	if len(b.notExistsAttrs) > 0 {
		cond := expression.AttributeNotExists(expression.Name(b.notExistsAttrs[0]))
		for _, name := range b.notExistsAttrs[1:] {
			cond = cond.And(expression.AttributeNotExists(expression.Name(name)))
		}
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return nil, apperrors.NewInternalError("failed to build put condition").WithCause(err)
		}
		in.ConditionExpression = expr.Condition()
		in.ExpressionAttributeNames = expr.Names()
	}

	return in, nil
}

func (b *QueryBuilder) buildUpdate() (*dynamodb.UpdateItemInput, error) {
	if len(b.keys) == 0 {
		return nil, errMissingKey(b.kind)
	}

	in := &dynamodb.UpdateItemInput{
		TableName:    aws.String(b.table),
		Key:          b.keys[0],
		ReturnValues: types.ReturnValueAllNew,
	}

	names := map[string]string{}
	values := Item{}

	// The SET keyword prefixes the first clause only; every later clause is
	// comma-joined, whether direct or function. Direct fields render first.
	var updateExpr strings.Builder
	writeSet := func(clause string) {
		if updateExpr.Len() == 0 {
			updateExpr.WriteString("SET ")
		} else {
			updateExpr.WriteString(", ")
		}
		updateExpr.WriteString(clause)
	}

	for _, name := range sortedNames(b.directUpdateFields) {
		writeSet(fmt.Sprintf("#%s = :%s", name, name))
		names["#"+name] = name
		values[":"+name] = b.directUpdateFields[name]
	}

	for _, f := range b.functionUpdateFields {
		switch f.function {
		case UpdateFunctionListAppend:
			name := f.attributeName
			writeSet(fmt.Sprintf("#%s = list_append(#%s, :%s)", name, name, name))
			names["#"+name] = name
			values[":"+name] = f.value
		default:
			return nil, errUnsupportedOperator(string(f.function), "update function")
		}
	}

	if updateExpr.Len() > 0 {
		in.UpdateExpression = aws.String(updateExpr.String())
	}
	if len(names) > 0 {
		in.ExpressionAttributeNames = names
	}
	if len(values) > 0 {
		in.ExpressionAttributeValues = values
	}

	return in, nil
}

func (b *QueryBuilder) buildDelete() (*dynamodb.DeleteItemInput, error) {
	if len(b.keys) == 0 {
		return nil, errMissingKey(b.kind)
	}

	return &dynamodb.DeleteItemInput{
		TableName: aws.String(b.table),
		Key:       b.keys[0],
	}, nil
}

/* ======================= expression helpers ======================= */

// renderCondition renders one condition clause, registering its placeholder
// name and value entries. IN is only valid in filter position; the ordering
// comparators and BETWEEN are valid in both. Note that only BEGINS_WITH
// (sort key) and IN (filter) currently have production call sites; the rest
// are exercised by unit tests alone.
func renderCondition(cond condition, names map[string]string, values Item, filterPosition bool) (string, error) {
	name := cond.keyName

	single := func(format string) (string, error) {
		if len(cond.values) < 1 {
			return "", apperrors.NewValidationError(
				fmt.Sprintf("comparator %s on %q requires one value", cond.operator, name))
		}
		names["#"+name] = name
		values[":"+name] = cond.values[0]
		return fmt.Sprintf(format, name, name), nil
	}

	switch cond.operator {
	case ComparisonEqual:
		return single("#%s = :%s")
	case ComparisonLessThan:
		return single("#%s < :%s")
	case ComparisonLessOrEqual:
		return single("#%s <= :%s")
	case ComparisonGreaterThan:
		return single("#%s > :%s")
	case ComparisonGreaterOrEqual:
		return single("#%s >= :%s")
	case ComparisonBeginsWith:
		return single("begins_with(#%s, :%s)")

	case ComparisonBetween:
		if len(cond.values) != 2 {
			return "", apperrors.NewValidationError(
				fmt.Sprintf("comparator BETWEEN on %q requires exactly two values", name))
		}
		names["#"+name] = name
		values[":"+name+"1"] = cond.values[0]
		values[":"+name+"2"] = cond.values[1]
		return fmt.Sprintf("#%s BETWEEN :%s1 AND :%s2", name, name, name), nil

	case ComparisonIn:
		if !filterPosition {
			return "", errUnsupportedOperator(string(cond.operator), "sort-key condition")
		}
		if len(cond.values) == 0 {
			return "", apperrors.NewValidationError(
				fmt.Sprintf("comparator IN on %q requires at least one value", name))
		}
		names["#"+name] = name
		placeholders := make([]string, 0, len(cond.values))
		for i, value := range cond.values {
			placeholder := fmt.Sprintf(":%s%d", name, i+1)
			placeholders = append(placeholders, placeholder)
			values[placeholder] = value
		}
		return fmt.Sprintf("#%s IN (%s)", name, strings.Join(placeholders, ", ")), nil
	}

	return "", errUnsupportedOperator(string(cond.operator), "condition")
}

func appendClause(sb *strings.Builder, clause string) {
	if sb.Len() > 0 {
		sb.WriteString(" AND ")
	}
	sb.WriteString(clause)
}

// sortedNames returns map keys in sorted order so compiled expressions are
// deterministic.
func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *QueryBuilder) marshalCondition(cond KeyCondition) (condition, error) {
	mc := condition{keyName: cond.KeyName, operator: cond.Operator}
	for _, value := range cond.Values {
		av, err := marshalValue(value)
		if err != nil {
			return condition{}, err
		}
		mc.values = append(mc.values, av)
	}
	return mc, nil
}

func (b *QueryBuilder) recordErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

func marshalItem(v interface{}) (Item, error) {
	if item, ok := v.(Item); ok {
		return item, nil
	}
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, apperrors.NewValidationError("failed to marshal key").WithCause(err)
	}
	return item, nil
}

func marshalValue(v interface{}) (types.AttributeValue, error) {
	if av, ok := v.(types.AttributeValue); ok {
		return av, nil
	}
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return nil, apperrors.NewValidationError("failed to marshal attribute value").WithCause(err)
	}
	return av, nil
}

func errMissingKey(kind RequestKind) error {
	return apperrors.NewValidationError(
		fmt.Sprintf("%s request requires at least one key", kind)).WithCode(CodeMissingKey)
}

func errUnsupportedOperator(operator, position string) error {
	return apperrors.NewValidationError(
		fmt.Sprintf("comparator %s is not supported in %s position", operator, position)).
		WithCode(CodeUnsupportedOperator)
}
