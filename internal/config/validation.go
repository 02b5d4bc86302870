package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if cfg.Mode == ModeRemote {
		switch cfg.MDS.Discovery {
		case DiscoveryStatic:
			if len(cfg.MDS.Addrs) == 0 {
				return fmt.Errorf("mds.addrs: at least one address is required for static discovery")
			}
		case DiscoveryEtcd:
			if len(cfg.MDS.EtcdEndpoints) == 0 {
				return fmt.Errorf("mds.etcd_endpoints: required for etcd discovery")
			}
		}
	}
	if cfg.Server.Register && len(cfg.MDS.EtcdEndpoints) == 0 {
		return fmt.Errorf("mds.etcd_endpoints: required to register the server")
	}
	if cfg.Embedded.ChunkSize%4096 != 0 {
		return fmt.Errorf("embedded.chunk_size: %d is not a multiple of 4096", cfg.Embedded.ChunkSize)
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
