// Package logger provee el logger Zap del proceso con scoping por contexto.
//
// # Decisiones
//
//   - Singleton: una sola instancia inicializada con Init() desde cmd/chatpal.
//   - Scoping: los middlewares HTTP inyectan un logger con request_id via ToContext;
//     los adapters de auth agregan provider/op con With.
//   - Entornos: "dev" consola con colores, "prod" JSON.
//   - Tests: SetForTests reemplaza la instancia por un zap.NewNop() o un observer.
//
// # Uso
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Component("auth.google"), logger.Op("SignIn"))
//	log.Info("credential accepted", logger.UID(user.UID))
package logger
