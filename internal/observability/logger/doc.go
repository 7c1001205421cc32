// Package logger provee el logger Zap del proceso con scoping por contexto.
//
// # Design Decisions
//
//   - Singleton: una sola instancia global, inicializada con Init() desde cmd/.
//   - Context Scoping: cada request lleva su propio logger con request_id,
//     method y path (ver middlewares.WithLogging). Los componentes del bridge
//     agregan provider/strategy/scope sobre ese logger.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//
// # Usage
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(r.Context()).With(logger.Provider("github"))
//	log.Debug("callback intercepted", logger.Scope(scope))
package logger
