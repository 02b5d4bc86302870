package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"

	"github.com/AnishMulay/sandblock/internal/chunk_service"
	"github.com/AnishMulay/sandblock/internal/chunk_service/localdisc"
	s3chunk "github.com/AnishMulay/sandblock/internal/chunk_service/s3"
	"github.com/AnishMulay/sandblock/internal/log_service"
	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
	"github.com/AnishMulay/sandblock/internal/metadata_service/badgerstore"
	"github.com/AnishMulay/sandblock/internal/metadata_service/memstore"
)

func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}

// NewMetadataStore builds the store selected by cfg.Type.
func NewMetadataStore(cfg MetadataStoreConfig) (ms.Store, error) {
	switch cfg.Type {
	case "memory":
		return memstore.NewMemStore(), nil
	case "badger":
		var opts badgerstore.Options
		if err := decodeOptions(cfg.Badger, &opts); err != nil {
			return nil, fmt.Errorf("failed to decode badger metadata store options: %w", err)
		}
		return badgerstore.Open(opts)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q", cfg.Type)
	}
}

type localdiscOptions struct {
	Dir string `mapstructure:"dir"`
}

// NewChunkService builds the chunk store selected by cfg.Type.
func NewChunkService(ctx context.Context, cfg ChunkStoreConfig, ls log_service.LogService) (chunk_service.ChunkService, error) {
	switch cfg.Type {
	case "localdisc":
		var opts localdiscOptions
		if err := decodeOptions(cfg.Localdisc, &opts); err != nil {
			return nil, fmt.Errorf("failed to decode localdisc chunk store options: %w", err)
		}
		if opts.Dir == "" {
			opts.Dir = filepath.Join(os.TempDir(), "sandblock", "chunks")
		}
		return localdisc.NewLocalDiscChunkService(opts.Dir, ls)
	case "s3":
		var opts s3chunk.Options
		if err := decodeOptions(cfg.S3, &opts); err != nil {
			return nil, fmt.Errorf("failed to decode s3 chunk store options: %w", err)
		}
		if err := validate.Struct(opts); err != nil {
			return nil, formatValidationError(err)
		}
		return s3chunk.NewS3ChunkService(ctx, opts, ls)
	default:
		return nil, fmt.Errorf("unknown chunk store type: %q", cfg.Type)
	}
}
