// Package environment models the deployment environment (development,
// staging, production) and carries it through request contexts so that
// loggers and handlers can adapt their behaviour.
//
//	env := environment.Parse(os.Getenv("APP_ENV"))
//	r.Use(environment.Middleware(env))
package environment
