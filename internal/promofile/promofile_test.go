package promofile

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"promo-orders/internal/model"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/pgzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func writeRaw(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "promos.jsonl.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	zw := pgzip.NewWriter(f)
	_, err = zw.Write([]byte(strings.Join(lines, "\n")))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	return path
}

func TestWriteFile_RoundTrip(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	defs := Sample(25, now)
	path := filepath.Join(t.TempDir(), "sample.jsonl.gz")

	require.NoError(t, WriteFile(path, defs))

	loaded, err := NewFileLoader(zerolog.Nop()).Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, loaded, 25)
	assert.Equal(t, "SAMPLE0001", loaded[0].Code)
	assert.Equal(t, defs[24].DiscountPercent, loaded[24].DiscountPercent)
	require.NotNil(t, loaded[0].ValidUntil)
	assert.True(t, now.Add(model.DefaultPromoValidity).Equal(*loaded[0].ValidUntil))
}

func TestFileLoader_Load(t *testing.T) {
	loader := NewFileLoader(zerolog.Nop())
	ctx := context.Background()

	t.Run("Skips blank lines", func(t *testing.T) {
		path := writeRaw(t,
			`{"code":"SPRING10","discountPercent":10,"maxUsage":50,"maxUsagePerUser":1}`,
			``,
			`   `,
			`{"code":"AUTUMN15","discountPercent":15,"maxUsage":20,"maxUsagePerUser":2,"status":"inactive"}`,
		)

		defs, err := loader.Load(ctx, path)
		require.NoError(t, err)
		require.Len(t, defs, 2)
		assert.Equal(t, model.PromoCodeInactive, defs[1].Status)
	})

	t.Run("Malformed line", func(t *testing.T) {
		path := writeRaw(t, `{"code":"SPRING10"}`, `not json`)

		_, err := loader.Load(ctx, path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("Not gzipped", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plain.jsonl")
		require.NoError(t, os.WriteFile(path, []byte(`{"code":"X"}`), 0o600))

		_, err := loader.Load(ctx, path)
		assert.Error(t, err)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := loader.Load(ctx, filepath.Join(t.TempDir(), "nope.gz"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open definition file")
	})
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[*params.Bucket+"/"+*params.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func TestS3Loader_Load(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, []Definition{{Code: "CLOUD20", DiscountPercent: 20, MaxUsage: 5, MaxUsagePerUser: 1}}))

	client := &fakeS3{objects: map[string][]byte{"promos/codes/a.gz": buf.Bytes()}}
	loader := NewS3LoaderWithClient(client, "promos", zerolog.Nop())

	defs, err := loader.Load(context.Background(), "codes/a.gz")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "CLOUD20", defs[0].Code)

	_, err = loader.Load(context.Background(), "codes/missing.gz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket=promos")
}

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) Load(ctx context.Context, path string) ([]Definition, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Definition), args.Error(1)
}

func TestFallbackLoader(t *testing.T) {
	ctx := context.Background()
	fromS3 := []Definition{{Code: "S3CODE"}}
	fromDisk := []Definition{{Code: "DISKCODE"}}

	t.Run("S3 succeeds", func(t *testing.T) {
		s3l, fl := new(mockLoader), new(mockLoader)
		s3l.On("Load", ctx, "promo-codes/a.gz").Return(fromS3, nil)

		defs, err := NewFallbackLoader(s3l, fl, "promo-codes/", zerolog.Nop()).Load(ctx, "a.gz")
		require.NoError(t, err)
		assert.Equal(t, fromS3, defs)
		fl.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
	})

	t.Run("S3 fails", func(t *testing.T) {
		s3l, fl := new(mockLoader), new(mockLoader)
		s3l.On("Load", ctx, "promo-codes/a.gz").Return(nil, errors.New("access denied"))
		fl.On("Load", ctx, "a.gz").Return(fromDisk, nil)

		defs, err := NewFallbackLoader(s3l, fl, "promo-codes/", zerolog.Nop()).Load(ctx, "a.gz")
		require.NoError(t, err)
		assert.Equal(t, fromDisk, defs)
	})

	t.Run("S3 disabled", func(t *testing.T) {
		fl := new(mockLoader)
		fl.On("Load", ctx, "a.gz").Return(fromDisk, nil)

		defs, err := NewFallbackLoader(nil, fl, "promo-codes/", zerolog.Nop()).Load(ctx, "a.gz")
		require.NoError(t, err)
		assert.Equal(t, fromDisk, defs)
	})
}
