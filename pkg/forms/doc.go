/*
Package forms is the inbound boundary of the engine: declarative form
definitions read from YAML into plain data. It is the attribute model the
navigation core consumes at Init; nothing here knows about navigation,
branching or skipping semantics.
*/
package forms
