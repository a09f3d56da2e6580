package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msg := fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag())
				if fe.Param() != "" {
					msg += "=" + fe.Param()
				}
				msgs = append(msgs, msg)
			}
			return fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
		}
		return err
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if cfg.Queue.Backend == QueueBackendRedis && cfg.Queue.Redis.Addr == "" {
		return errors.New("queue.redis.addr is required when queue.backend is redis")
	}
	if cfg.Mappings.Watch && cfg.Mappings.File == "" {
		return errors.New("mappings.watch requires mappings.file")
	}
	if cfg.API.Enabled && !cfg.API.HasJWTSecret() {
		return fmt.Errorf("api.jwt.secret (or ROLESYNC_API_SECRET) is required when the API is enabled")
	}
	if s := cfg.API.GetJWTSecret(); s != "" && len(s) < 32 {
		return errors.New("api.jwt.secret must be at least 32 characters")
	}
	return nil
}
