// Package engine wraps the lifecycle of one external computational engine
// session. It defines the narrow Engine interface the rest of the harness
// programs against, the typed errors crossing that boundary, and the Bridge
// implementation that launches the engine process and speaks to its
// socket.io endpoint.
package engine
