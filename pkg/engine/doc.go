// Package engine is the dispatch core of frontd.
//
// A Server owns a network engine (see package transport) and a poll loop
// that drives it. HTTP requests the engine hands over are routed to the
// first registered controller that claims them; WebSocket upgrades, messages
// and closes are fanned out to every controller.
//
//	┌───────────────┐  OnRequest   ┌──────────────┐  Handles/Process  ┌─────────────┐
//	│   transport   │ ───────────▶ │    Server    │ ────────────────▶ │ controllers │
//	│    Engine     │ ◀─────────── │  poll loop   │ ◀──────────────── │  (ordered)  │
//	└───────────────┘  Poll/Iterate└──────────────┘   *Response       └─────────────┘
//
// # Lifecycle
//
// A Server is created in StateCreated. Start creates a fresh engine, applies
// the configured options and launches the poll goroutine (StateRunning).
// Stop sets the stop flag; the poll goroutine finishes its iteration,
// marks every WebSocket closed, destroys the engine and moves the server to
// StateStopped. A stopped server can be started again.
//
// Stop waits for the poll goroutine, which also runs the WebSocketData and
// WebSocketClosed hooks. A hook that wants to stop the server calls
// RequestStop, which only raises the flag.
//
// # Basic Usage
//
//	srv := engine.New(cfg, engine.WithLogger(log))
//	srv.RegisterController(myController)
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Stop()
package engine
