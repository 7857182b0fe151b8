// Package config loads typed configuration from environment variables.
//
// Structs describe their variables with caarlos0/env tags. A .env file in the
// working directory is read once (via godotenv) before the first parse, so
// local development does not need exported variables. Load caches one value
// per struct type; Parse bypasses the cache and is what tests should use.
//
// Structs implementing Validator are checked after parsing:
//
//	func (c Config) Validate() error {
//		if c.PingPeriod >= c.PongWait {
//			return errors.New("ping period must be shorter than pong wait")
//		}
//		return nil
//	}
package config
