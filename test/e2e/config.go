package e2e

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittodrop/pkg/store/content"
	contentfs "github.com/marmos91/dittodrop/pkg/store/content/fs"
	contentmemory "github.com/marmos91/dittodrop/pkg/store/content/memory"
	contents3 "github.com/marmos91/dittodrop/pkg/store/content/s3"
	"github.com/marmos91/dittodrop/pkg/store/journal"
	journalbadger "github.com/marmos91/dittodrop/pkg/store/journal/badger"
	journalmemory "github.com/marmos91/dittodrop/pkg/store/journal/memory"
)

// JournalType represents the type of transfer journal
type JournalType string

const (
	JournalMemory JournalType = "memory"
	JournalBadger JournalType = "badger"
)

// ContentStoreType represents the type of content store
type ContentStoreType string

const (
	ContentMemory     ContentStoreType = "memory"
	ContentFilesystem ContentStoreType = "filesystem"
	ContentS3         ContentStoreType = "s3"
)

// TestContextProvider is an interface for providing test context dependencies
type TestContextProvider interface {
	CreateTempDir(prefix string) string
	GetConfig() *TestConfig
}

// TestConfig holds the configuration for a test run
type TestConfig struct {
	Name         string
	Journal      JournalType
	ContentStore ContentStoreType

	// S3-specific fields (set by localstack setup)
	s3Client *s3.Client
	s3Bucket string
}

func (tc *TestConfig) String() string {
	return fmt.Sprintf("%s/%s", tc.Journal, tc.ContentStore)
}

// CreateJournal creates a journal based on the configuration
func (tc *TestConfig) CreateJournal(ctx context.Context, testCtx TestContextProvider) (journal.Journal, error) {
	switch tc.Journal {
	case JournalMemory:
		return journalmemory.NewMemoryJournal(), nil

	case JournalBadger:
		dbPath := filepath.Join(testCtx.CreateTempDir("dittodrop-badger-*"), "journal.db")
		j, err := journalbadger.NewBadgerJournal(ctx, journalbadger.Config{Path: dbPath})
		if err != nil {
			return nil, fmt.Errorf("failed to create badger journal: %w", err)
		}
		return j, nil

	default:
		return nil, fmt.Errorf("unknown journal type: %s", tc.Journal)
	}
}

// CreateContentStore creates a content store based on the configuration
func (tc *TestConfig) CreateContentStore(ctx context.Context, testCtx TestContextProvider) (content.ContentStore, error) {
	switch tc.ContentStore {
	case ContentMemory:
		store, err := contentmemory.NewMemoryContentStore(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory content store: %w", err)
		}
		return store, nil

	case ContentFilesystem:
		store, err := contentfs.NewFSContentStore(ctx, contentfs.Config{
			Path: testCtx.CreateTempDir("dittodrop-content-*"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem content store: %w", err)
		}
		return store, nil

	case ContentS3:
		config := testCtx.GetConfig()
		if config.s3Client == nil || config.s3Bucket == "" {
			return nil, fmt.Errorf("S3 client not initialized (localstack not running?)")
		}

		store, err := contents3.NewS3ContentStore(ctx, contents3.S3ContentStoreConfig{
			Client:    config.s3Client,
			Bucket:    config.s3Bucket,
			KeyPrefix: "e2e/",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 content store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown content store type: %s", tc.ContentStore)
	}
}

// AllConfigurations returns all test configurations that need no external
// services.
func AllConfigurations() []*TestConfig {
	return []*TestConfig{
		{
			Name:         "memory-memory",
			Journal:      JournalMemory,
			ContentStore: ContentMemory,
		},
		{
			Name:         "memory-filesystem",
			Journal:      JournalMemory,
			ContentStore: ContentFilesystem,
		},
		{
			Name:         "badger-filesystem",
			Journal:      JournalBadger,
			ContentStore: ContentFilesystem,
		},
	}
}

// S3Configurations returns configurations that use S3 (requires localstack)
func S3Configurations() []*TestConfig {
	return []*TestConfig{
		{
			Name:         "memory-s3",
			Journal:      JournalMemory,
			ContentStore: ContentS3,
		},
		{
			Name:         "badger-s3",
			Journal:      JournalBadger,
			ContentStore: ContentS3,
		},
	}
}
