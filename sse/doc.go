// Package sse implements Server-Sent Events for the gateway: a Hub that fans
// state snapshots out to monitor subscribers, and a Stream that writes one
// response's events.
//
// # Usage
//
//	c := sse.NewComponent("monitor", "/v1/state")
//	registry.Register(c)
//	router.GET("/v1/state", func(ctx *gin.Context) {
//	    sse.ServeSSE(c.Hub(), ctx.Writer, ctx.Request, uuid.NewString(), 0)
//	})
//	c.Hub().Broadcast(sse.Event{Name: "engine_state_event", Data: payload})
package sse
