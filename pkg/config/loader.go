package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Validator is implemented by configuration structs that need checks beyond
// what env tags can express (value ranges, cross-field rules).
type Validator interface {
	Validate() error
}

var (
	dotenvOnce sync.Once
	cache      sync.Map // reflect.Type -> value
)

// Load fills v from the environment, reading a .env file in the working
// directory first if one exists. Each configuration type is parsed and
// validated once; later calls for the same type receive the cached copy.
//
//	type RealtimeConfig struct {
//		AuthTimeout time.Duration `env:"REALTIME_AUTH_TIMEOUT" envDefault:"10s"`
//	}
//
//	var cfg RealtimeConfig
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	dotenvOnce.Do(func() { _ = godotenv.Load() })

	key := reflect.TypeFor[T]()
	if cached, ok := cache.Load(key); ok {
		*v = cached.(T)
		return nil
	}

	if err := Parse(v); err != nil {
		return err
	}

	actual, _ := cache.LoadOrStore(key, *v)
	*v = actual.(T)
	return nil
}

// Parse fills v from the environment without caching.
func Parse[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	if val, ok := any(v).(Validator); ok {
		if err := val.Validate(); err != nil {
			return errors.Join(ErrInvalidConfig, err)
		}
	}
	return nil
}

// MustLoad works like Load but panics on failure.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load configuration %s: %v", reflect.TypeFor[T](), err))
	}
}
