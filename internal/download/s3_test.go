package download

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePut struct {
	in   *s3.PutObjectInput
	body string
	err  error
}

func (f *fakePut) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Sink_Save(t *testing.T) {
	fp := &fakePut{}
	s := &S3Sink{client: fp, bucket: "choir", prefix: "exports", newID: func() string { return "0001" }}

	loc, err := s.Save(context.Background(), "attendance.pdf", "application/pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "s3://choir/exports/attendance-0001.pdf", loc)
	assert.Equal(t, "choir", aws.ToString(fp.in.Bucket))
	assert.Equal(t, "exports/attendance-0001.pdf", aws.ToString(fp.in.Key))
	assert.Equal(t, "application/pdf", aws.ToString(fp.in.ContentType))
	assert.Equal(t, int64(4), aws.ToInt64(fp.in.ContentLength))
	assert.Equal(t, "%PDF", fp.body)
}

func TestS3Sink_SaveError(t *testing.T) {
	s := &S3Sink{client: &fakePut{err: errors.New("access denied")}, bucket: "choir", newID: func() string { return "7" }}
	_, err := s.Save(context.Background(), "x.csv", "", strings.NewReader("a,b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload s3://choir/x-7.csv")
}

func TestS3Sink_SameNameGetsDistinctKeys(t *testing.T) {
	fp := &fakePut{}
	s := &S3Sink{client: fp, bucket: "choir", prefix: "exports"}
	ctx := context.Background()

	first, err := s.Save(ctx, "attendance.csv", "text/csv", strings.NewReader("a"))
	require.NoError(t, err)
	second, err := s.Save(ctx, "attendance.csv", "text/csv", strings.NewReader("b"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	for _, loc := range []string{first, second} {
		assert.True(t, strings.HasPrefix(loc, "s3://choir/exports/attendance-"), loc)
		assert.True(t, strings.HasSuffix(loc, ".csv"), loc)
	}
}

func TestNewS3Sink_WiresEndpointAndCredentials(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() { loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew })

	var lo awsconfig.LoadOptions
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		return aws.Config{Region: lo.Region, Credentials: lo.Credentials}, nil
	}
	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}

	_, err := NewS3Sink(context.Background(), S3Config{
		Bucket:       "choir",
		Region:       "us-east-1",
		BaseEndpoint: "http://127.0.0.1:9000",
		AccessKey:    "minio",
		SecretKey:    "minio123",
	})
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", lo.Region)
	require.NotNil(t, lo.Credentials)
	creds, err := lo.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minio", creds.AccessKeyID)
	assert.Equal(t, "http://127.0.0.1:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Sink_RequiresBucket(t *testing.T) {
	_, err := NewS3Sink(context.Background(), S3Config{})
	require.Error(t, err)
}

func TestNewS3Sink_LoadError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}
	_, err := NewS3Sink(context.Background(), S3Config{Bucket: "b"})
	require.ErrorContains(t, err, "load aws config")
}
