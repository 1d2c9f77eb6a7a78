// Package mail holds email transports that do not need a broker.
package mail
