// Package transport owns the UDP sockets. An Endpoint couples a bound
// socket with a receive loop that decodes datagrams once and hands the
// typed message to a handler. Reads are bounded by short deadlines so
// shutdown is prompt; handler errors never stop the loop.
package transport
