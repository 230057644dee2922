// Package client implements a small synchronous client for the memcached
// binary protocol. It is used by the command line tools and by the tests of
// the server.
//
// Key Components:
//
//   - Client: Wraps one connection. Do sends a single request and waits for its
//     reply. Pipeline writes many requests in one write and collects the
//     replies until the last (non-quiet) request is answered, which is how
//     clients use quiet opcodes (see GetMulti).
//
//   - StatusError: Error for replies with a status other than SUCCESS.
//
// Usage Example:
//
//	c, err := client.Connect(
//		common.ClientConfig{Endpoint: "127.0.0.1:11212"},
//		tcp.NewTCPClientTransport(),
//	)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	pairs, err := c.Stats("")
package client
