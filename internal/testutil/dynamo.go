// Package testutil holds an in-memory DynamoDB used by package tests.
//
// FakeDynamo understands only the expression shapes the stores emit:
//
//	conditions: attribute_exists(a), attribute_not_exists(a), a = :v, joined by AND
//	updates:    SET a = :v, b = :w  and  ADD a :n
//	queries:    a = :v on the base table or on a registered index
//
// It is good enough to exercise conditional writes and transaction
// cancellation reasons. It is not a general emulator.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type tableSchema struct {
	pk, sk string
	items  map[string]map[string]types.AttributeValue
}

// FakeDynamo implements aws.DynamoDBAPI in memory.
type FakeDynamo struct {
	mu     sync.Mutex
	tables map[string]*tableSchema

	// BeforeTransact runs (without the lock held) right before a transaction is evaluated.
	// Tests use it to slip a competing write in between a read and the commit.
	BeforeTransact func()

	// Errors injected per operation name ("PutItem", "GetItem", "UpdateItem", "Query",
	// "TransactWriteItems"). An injected error is returned once and then cleared.
	errs map[string]error

	// PageSize caps the items a Query returns per call, standing in for the
	// 1 MB response limit. Zero means unlimited.
	PageSize int

	Calls map[string]int
}

// NewFakeDynamo returns an empty fake.
func NewFakeDynamo() *FakeDynamo {
	return &FakeDynamo{
		tables: map[string]*tableSchema{},
		errs:   map[string]error{},
		Calls:  map[string]int{},
	}
}

// CreateTable registers a table with its partition key and optional sort key.
func (f *FakeDynamo) CreateTable(name, pk, sk string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = &tableSchema{pk: pk, sk: sk, items: map[string]map[string]types.AttributeValue{}}
}

// FailNext makes the next call to op return err.
func (f *FakeDynamo) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

// Seed writes an item unconditionally.
func (f *FakeDynamo) Seed(table string, item map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.mustTable(table)
	t.items[t.keyOf(item)] = copyItem(item)
}

// SeedValue marshals v with attributevalue and writes it unconditionally.
func (f *FakeDynamo) SeedValue(table string, v any) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal seed: %w", err)
	}
	f.Seed(table, item)
	return nil
}

// Items returns a copy of every item in table.
func (f *FakeDynamo) Items(table string) []map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.mustTable(table)
	out := make([]map[string]types.AttributeValue, 0, len(t.items))
	for _, it := range t.items {
		out = append(out, copyItem(it))
	}
	return out
}

// Count returns the number of items in table.
func (f *FakeDynamo) Count(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.mustTable(table).items)
}

func (f *FakeDynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PutItem"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	key := t.keyOf(in.Item)
	ok, err := evalCondition(in.ConditionExpression, t.items[key], in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
	}
	t.items[key] = copyItem(in.Item)
	return &dyn.PutItemOutput{}, nil
}

func (f *FakeDynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetItem"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[t.keyOf(in.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *FakeDynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateItem"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	key := t.keyOf(in.Key)
	current := t.items[key]
	ok, err := evalCondition(in.ConditionExpression, current, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
	}
	updated, err := applyUpdate(current, in.Key, deref(in.UpdateExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	t.items[key] = updated
	return &dyn.UpdateItemOutput{Attributes: copyItem(updated)}, nil
}

func (f *FakeDynamo) Query(ctx context.Context, in *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Query"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := ""
	if len(in.ExclusiveStartKey) > 0 {
		start = t.keyOf(in.ExclusiveStartKey)
	}
	limit := f.PageSize
	if in.Limit != nil && (limit == 0 || int(*in.Limit) < limit) {
		limit = int(*in.Limit)
	}

	var out []map[string]types.AttributeValue
	var last map[string]types.AttributeValue
	for _, k := range keys {
		if start != "" && k <= start {
			continue
		}
		it := t.items[k]
		ok, err := evalCondition(in.KeyConditionExpression, it, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if limit > 0 && len(out) == limit {
			last = t.keyAttrs(out[len(out)-1])
			break
		}
		out = append(out, copyItem(it))
	}
	return &dyn.QueryOutput{Items: out, Count: int32(len(out)), LastEvaluatedKey: last}, nil
}

func (f *FakeDynamo) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	hook := f.BeforeTransact
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("TransactWriteItems"); err != nil {
		return nil, err
	}

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	canceled := false
	for i, it := range in.TransactItems {
		ok, err := f.checkTransactItem(it)
		if err != nil {
			return nil, err
		}
		code := "None"
		if !ok {
			code = "ConditionalCheckFailed"
			canceled = true
		}
		reasons[i] = types.CancellationReason{Code: strPtr(code)}
	}
	if canceled {
		return nil, &types.TransactionCanceledException{
			Message:             strPtr("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	for _, it := range in.TransactItems {
		switch {
		case it.Put != nil:
			t, _ := f.table(it.Put.TableName)
			t.items[t.keyOf(it.Put.Item)] = copyItem(it.Put.Item)
		case it.Update != nil:
			t, _ := f.table(it.Update.TableName)
			key := t.keyOf(it.Update.Key)
			updated, err := applyUpdate(t.items[key], it.Update.Key, deref(it.Update.UpdateExpression), it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues)
			if err != nil {
				return nil, err
			}
			t.items[key] = updated
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (f *FakeDynamo) checkTransactItem(it types.TransactWriteItem) (bool, error) {
	switch {
	case it.Put != nil:
		t, err := f.table(it.Put.TableName)
		if err != nil {
			return false, err
		}
		return evalCondition(it.Put.ConditionExpression, t.items[t.keyOf(it.Put.Item)], it.Put.ExpressionAttributeNames, it.Put.ExpressionAttributeValues)
	case it.Update != nil:
		t, err := f.table(it.Update.TableName)
		if err != nil {
			return false, err
		}
		return evalCondition(it.Update.ConditionExpression, t.items[t.keyOf(it.Update.Key)], it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues)
	case it.ConditionCheck != nil:
		t, err := f.table(it.ConditionCheck.TableName)
		if err != nil {
			return false, err
		}
		return evalCondition(it.ConditionCheck.ConditionExpression, t.items[t.keyOf(it.ConditionCheck.Key)], it.ConditionCheck.ExpressionAttributeNames, it.ConditionCheck.ExpressionAttributeValues)
	}
	return false, errors.New("unsupported transact item")
}

func (f *FakeDynamo) enter(op string) error {
	f.Calls[op]++
	if err, ok := f.errs[op]; ok {
		delete(f.errs, op)
		return err
	}
	return nil
}

func (f *FakeDynamo) table(name *string) (*tableSchema, error) {
	if name == nil {
		return nil, errors.New("missing table name")
	}
	t, ok := f.tables[*name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: strPtr("table not found: " + *name)}
	}
	return t, nil
}

func (f *FakeDynamo) mustTable(name string) *tableSchema {
	t, ok := f.tables[name]
	if !ok {
		panic("testutil: unknown table " + name)
	}
	return t
}

func (t *tableSchema) keyOf(item map[string]types.AttributeValue) string {
	k := scalar(item[t.pk])
	if t.sk != "" {
		k += "|" + scalar(item[t.sk])
	}
	return k
}

func (t *tableSchema) keyAttrs(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	k := map[string]types.AttributeValue{t.pk: item[t.pk]}
	if t.sk != "" {
		k[t.sk] = item[t.sk]
	}
	return k
}

func evalCondition(expr *string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return true, nil
	}
	for _, clause := range strings.Split(*expr, " AND ") {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "attribute_exists(") && strings.HasSuffix(clause, ")"):
			attr := resolveName(clause[len("attribute_exists("):len(clause)-1], names)
			if _, ok := item[attr]; !ok {
				return false, nil
			}
		case strings.HasPrefix(clause, "attribute_not_exists(") && strings.HasSuffix(clause, ")"):
			attr := resolveName(clause[len("attribute_not_exists("):len(clause)-1], names)
			if _, ok := item[attr]; ok {
				return false, nil
			}
		case strings.Contains(clause, " = "):
			parts := strings.SplitN(clause, " = ", 2)
			attr := resolveName(strings.TrimSpace(parts[0]), names)
			want, ok := values[strings.TrimSpace(parts[1])]
			if !ok {
				return false, fmt.Errorf("missing expression value %s", parts[1])
			}
			got, ok := item[attr]
			if !ok || scalar(got) != scalar(want) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported condition %q", clause)
		}
	}
	return true, nil
}

func applyUpdate(current, key map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	out := copyItem(current)
	if out == nil {
		out = map[string]types.AttributeValue{}
	}
	for k, v := range key {
		out[k] = v
	}

	clauses := map[string][]string{}
	var section string
	for _, tok := range strings.Fields(expr) {
		switch strings.ToUpper(tok) {
		case "SET", "ADD":
			section = strings.ToUpper(tok)
			continue
		}
		if section == "" {
			return nil, fmt.Errorf("unsupported update expression %q", expr)
		}
		clauses[section] = append(clauses[section], tok)
	}

	for _, assign := range strings.Split(strings.Join(clauses["SET"], " "), ",") {
		assign = strings.TrimSpace(assign)
		if assign == "" {
			continue
		}
		parts := strings.SplitN(assign, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("unsupported SET clause %q", assign)
		}
		v, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return nil, fmt.Errorf("missing expression value %s", parts[1])
		}
		out[resolveName(strings.TrimSpace(parts[0]), names)] = v
	}

	for _, add := range strings.Split(strings.Join(clauses["ADD"], " "), ",") {
		fields := strings.Fields(add)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("unsupported ADD clause %q", add)
		}
		attr := resolveName(fields[0], names)
		delta, ok := values[fields[1]].(*types.AttributeValueMemberN)
		if !ok {
			return nil, fmt.Errorf("ADD needs a numeric value, got %T", values[fields[1]])
		}
		base := 0.0
		if n, ok := out[attr].(*types.AttributeValueMemberN); ok {
			base, _ = strconv.ParseFloat(n.Value, 64)
		}
		d, _ := strconv.ParseFloat(delta.Value, 64)
		out[attr] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(base+d, 'f', -1, 64)}
	}
	return out, nil
}

func resolveName(n string, names map[string]string) string {
	if strings.HasPrefix(n, "#") {
		if v, ok := names[n]; ok {
			return v
		}
	}
	return n
}

func scalar(v types.AttributeValue) string {
	switch tv := v.(type) {
	case *types.AttributeValueMemberS:
		return "S:" + tv.Value
	case *types.AttributeValueMemberN:
		return "N:" + tv.Value
	case *types.AttributeValueMemberBOOL:
		return "BOOL:" + strconv.FormatBool(tv.Value)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%T", v)
	}
}

func copyItem(in map[string]types.AttributeValue) map[string]types.AttributeValue {
	if in == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string { return &s }
