// Package bootstrap runs a service through its lifecycle: validate the
// config, start registered components in order, run the configure phase and
// hooks, print the startup summary, then wait for a signal and stop
// everything in reverse.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(server.NewComponent(srv))
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*GatewayConfig]) error {
//	    return nil
//	})
//	return app.Run(ctx)
package bootstrap
