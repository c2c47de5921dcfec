package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"
	"github.com/marmos91/dittodrop/pkg/store/content"
	fsstore "github.com/marmos91/dittodrop/pkg/store/content/fs"
	memorystore "github.com/marmos91/dittodrop/pkg/store/content/memory"
	s3store "github.com/marmos91/dittodrop/pkg/store/content/s3"
	"github.com/marmos91/dittodrop/pkg/store/journal"
	badgerjournal "github.com/marmos91/dittodrop/pkg/store/journal/badger"
	memoryjournal "github.com/marmos91/dittodrop/pkg/store/journal/memory"
)

// CreateContentStore builds the content store selected by cfg.Type.
func CreateContentStore(ctx context.Context, cfg *StorageConfig) (content.ContentStore, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemContentStore(ctx, cfg.Filesystem)
	case "memory":
		store, err := memorystore.NewMemoryContentStore(ctx)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		return createS3ContentStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown content store type: %q", cfg.Type)
	}
}

func createFilesystemContentStore(ctx context.Context, options map[string]any) (content.ContentStore, error) {
	var fsCfg fsstore.Config
	if err := decodeOptions(options, &fsCfg); err != nil {
		return nil, fmt.Errorf("invalid filesystem config: %w", err)
	}

	store, err := fsstore.NewFSContentStore(ctx, fsCfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// s3Options are the user-facing options of the S3 content store.
type s3Options struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

func createS3ContentStore(ctx context.Context, options map[string]any) (content.ContentStore, error) {
	var opts s3Options
	if err := decodeOptions(options, &opts); err != nil {
		return nil, fmt.Errorf("invalid s3 config: %w", err)
	}

	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 content store: bucket is required")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 10
	}

	loadOpts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(opts.Region),
		awsConfig.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = opts.MaxRetries
			})
		}),
	}

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	store, err := s3store.NewS3ContentStore(ctx, s3store.S3ContentStoreConfig{
		Client:    client,
		Bucket:    opts.Bucket,
		KeyPrefix: opts.KeyPrefix,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// CreateJournal builds the transfer journal selected by cfg.Type.
func CreateJournal(ctx context.Context, cfg *JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "", "none":
		return journal.Noop{}, nil
	case "memory":
		return memoryjournal.NewMemoryJournal(), nil
	case "badger":
		var badgerCfg badgerjournal.Config
		if err := decodeOptions(cfg.Badger, &badgerCfg); err != nil {
			return nil, fmt.Errorf("invalid badger config: %w", err)
		}
		if err := validate.Struct(badgerCfg); err != nil {
			return nil, formatValidationError(err)
		}
		j, err := badgerjournal.NewBadgerJournal(ctx, badgerCfg)
		if err != nil {
			return nil, err
		}
		return j, nil
	default:
		return nil, fmt.Errorf("unknown journal type: %q", cfg.Type)
	}
}

// decodeOptions decodes a free-form options map. Weak typing lets values
// that arrived as env strings ("0750", "5") fill numeric fields.
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}
