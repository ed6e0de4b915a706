package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"golang.org/x/time/rate"
)

// DynamoDBStore is an implementation of ObjectStore whose backend is a
// DynamoDB table, for tiny deployments that have no blob bucket at all.
// Items carry the object bytes and descriptor fields; keep objects well
// under the item size limit.
type DynamoDBStore struct {
	profile string
	region  string
	table   string

	// Do throttling on our side based on configured RCUs/WCUs so callers
	// don't have to retry.
	getLimiter *rate.Limiter
	putLimiter *rate.Limiter

	ddb *dynamodb.DynamoDB
}

func NewDynamoDBStore(profile, region, table string) (*DynamoDBStore, error) {
	if table == "" {
		return nil, ErrNotConfigured
	}
	s := &DynamoDBStore{
		profile: profile,
		region:  region,
		table:   table,
	}
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(s.region),
		Credentials: credentials.NewSharedCredentials("", s.profile),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb session: %v: %w", err, ErrUnavailable)
	}
	s.ddb = dynamodb.New(sess)
	if err := s.configureLimiters(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DynamoDBStore) configureLimiters() error {
	result, err := s.ddb.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: &s.table,
	})
	if err != nil {
		return fmt.Errorf("dynamodb describe %q: %v: %w", s.table, err, ErrUnavailable)
	}
	// Assume items are <= 1 kB so RCUs/WCUs translate to requests per
	// second. On-demand tables report zero units and get no client-side
	// throttling.
	rcus := *result.Table.ProvisionedThroughput.ReadCapacityUnits
	wcus := *result.Table.ProvisionedThroughput.WriteCapacityUnits
	s.getLimiter = capacityLimiter(rcus)
	s.putLimiter = capacityLimiter(wcus)
	return nil
}

func capacityLimiter(units int64) *rate.Limiter {
	if units <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Duration(1_000_000/units)*time.Microsecond), 1)
}

func (s *DynamoDBStore) Put(ctx context.Context, key string, value []byte, contentType string) error {
	var input dynamodb.PutItemInput
	input.TableName = &s.table
	input.Item = map[string]*dynamodb.AttributeValue{
		"k":  {S: aws.String(key)},
		"va": {B: dup(value)},
		"ct": {S: aws.String(contentType)},
		"sz": ddbNumber(int64(len(value))),
		"up": ddbNumber(time.Now().Unix()),
	}
	if err := s.putLimiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := s.ddb.PutItemWithContext(ctx, &input); err != nil {
		return s.mapError("put", key, err)
	}
	return nil
}

func (s *DynamoDBStore) Get(ctx context.Context, key string) (value []byte, err error) {
	item, err := s.getItem(ctx, key, "")
	if err != nil {
		return nil, err
	}
	return item["va"].B, nil
}

func (s *DynamoDBStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	item, err := s.getItem(ctx, key, "k, ct, sz, up")
	if err != nil {
		return ObjectInfo{}, err
	}
	return infoFromItem(item), nil
}

func (s *DynamoDBStore) getItem(ctx context.Context, key, projection string) (map[string]*dynamodb.AttributeValue, error) {
	var input dynamodb.GetItemInput
	input.TableName = &s.table
	input.Key = map[string]*dynamodb.AttributeValue{
		"k": {S: aws.String(key)},
	}
	if projection != "" {
		input.ProjectionExpression = aws.String(projection)
	}
	if err := s.getLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	output, err := s.ddb.GetItemWithContext(ctx, &input)
	if err != nil {
		return nil, s.mapError("get", key, err)
	}
	if output.Item == nil {
		return nil, fmt.Errorf("%q: %w", key, ErrNotFound)
	}
	return output.Item, nil
}

func (s *DynamoDBStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var input dynamodb.ScanInput
	input.TableName = &s.table
	input.FilterExpression = aws.String("begins_with(k, :p)")
	input.ExpressionAttributeValues = map[string]*dynamodb.AttributeValue{
		":p": {S: aws.String(prefix)},
	}
	input.ProjectionExpression = aws.String("k, ct, sz, up")
	if err := s.getLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	var infos []ObjectInfo
	err := s.ddb.ScanPagesWithContext(ctx, &input, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		for _, item := range page.Items {
			infos = append(infos, infoFromItem(item))
		}
		return true
	})
	if err != nil {
		return nil, s.mapError("list", prefix, err)
	}
	return infos, nil
}

func (s *DynamoDBStore) URL(key string) string {
	return fmt.Sprintf("ddb://%s/%s", s.table, key)
}

func (s *DynamoDBStore) mapError(op, key string, err error) error {
	if e, ok := err.(awserr.Error); ok {
		if e.Code() == dynamodb.ErrCodeResourceNotFoundException {
			return fmt.Errorf("%q: %w", key, ErrNotFound)
		}
	}
	return fmt.Errorf("dynamodb %s %q: %v: %w", op, key, err, ErrUnavailable)
}

func infoFromItem(item map[string]*dynamodb.AttributeValue) ObjectInfo {
	info := ObjectInfo{
		Key:         aws.StringValue(item["k"].S),
		ContentType: attrString(item, "ct"),
		Size:        attrNumber(item, "sz"),
	}
	if up := attrNumber(item, "up"); up > 0 {
		info.Updated = time.Unix(up, 0).UTC()
	}
	return info
}

func attrString(item map[string]*dynamodb.AttributeValue, name string) string {
	if av, ok := item[name]; ok {
		return aws.StringValue(av.S)
	}
	return ""
}

func attrNumber(item map[string]*dynamodb.AttributeValue, name string) int64 {
	av, ok := item[name]
	if !ok || av.N == nil {
		return 0
	}
	// Trusting this to be a number.
	n, _ := strconv.ParseInt(*av.N, 10, 64)
	return n
}

func ddbNumber(n int64) *dynamodb.AttributeValue {
	return &dynamodb.AttributeValue{
		N: aws.String(strconv.FormatInt(n, 10)),
	}
}
