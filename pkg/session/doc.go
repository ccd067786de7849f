/*
Package session implements form-session persistence orchestration.

It provides high-level abstractions for handling concurrent access to
session snapshots across multiple replicas, combining in-process reference
counted locks with an optional distributed locker and a snapshot store.
*/
package session
