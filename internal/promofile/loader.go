package promofile

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// fileLoader implements Loader for local definition files.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a new file-based definition loader.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "promo-file-loader").Logger(),
	}
}

func (l *fileLoader) Load(ctx context.Context, path string) ([]Definition, error) {
	file, err := os.Open(path)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to open definition file")
		return nil, fmt.Errorf("failed to open definition file %s: %w", path, err)
	}
	defer file.Close()

	defs, err := decode(ctx, file)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to read definition file")
		return nil, fmt.Errorf("failed to read definition file %s: %w", path, err)
	}

	l.logger.Info().Str("file", path).Int("definitions", len(defs)).Msg("definition file loaded")
	return defs, nil
}

// ObjectGetter is the subset of the S3 client used by the S3 loader.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// s3Loader implements Loader for definition files stored in S3.
type s3Loader struct {
	client ObjectGetter
	bucket string
	logger zerolog.Logger
}

// NewS3Loader creates an S3 loader using the default AWS credential chain.
func NewS3Loader(ctx context.Context, bucket, region string, logger zerolog.Logger) (Loader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return NewS3LoaderWithClient(s3.NewFromConfig(cfg), bucket, logger), nil
}

// NewS3LoaderWithClient creates an S3 loader over an existing client.
func NewS3LoaderWithClient(client ObjectGetter, bucket string, logger zerolog.Logger) Loader {
	return &s3Loader{
		client: client,
		bucket: bucket,
		logger: logger.With().Str("component", "s3-promo-loader").Str("bucket", bucket).Logger(),
	}
}

func (l *s3Loader) Load(ctx context.Context, key string) ([]Definition, error) {
	result, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		l.logger.Error().Err(err).Str("key", key).Msg("failed to get object from S3")
		return nil, fmt.Errorf("failed to get object from S3 (bucket=%s, key=%s): %w", l.bucket, key, err)
	}
	defer result.Body.Close()

	defs, err := decode(ctx, result.Body)
	if err != nil {
		l.logger.Error().Err(err).Str("key", key).Msg("failed to read definition file from S3")
		return nil, fmt.Errorf("failed to read S3 object %s: %w", key, err)
	}

	l.logger.Info().Str("key", key).Int("definitions", len(defs)).Msg("definition file loaded from S3")
	return defs, nil
}

// fallbackLoader tries S3 first, then the local file system.
type fallbackLoader struct {
	s3     Loader
	file   Loader
	prefix string
	logger zerolog.Logger
}

// NewFallbackLoader creates a loader that tries S3 under prefix before the
// local path. A nil s3 loader reads local files only.
func NewFallbackLoader(s3 Loader, file Loader, prefix string, logger zerolog.Logger) Loader {
	return &fallbackLoader{
		s3:     s3,
		file:   file,
		prefix: prefix,
		logger: logger.With().Str("component", "fallback-promo-loader").Logger(),
	}
}

func (l *fallbackLoader) Load(ctx context.Context, path string) ([]Definition, error) {
	if l.s3 != nil {
		key := l.prefix + path
		defs, err := l.s3.Load(ctx, key)
		if err == nil {
			return defs, nil
		}
		l.logger.Warn().Err(err).Str("s3_key", key).Msg("failed to load from S3, falling back to local file system")
	}

	return l.file.Load(ctx, path)
}
