// Package conversation implements the multi-turn command engine behind the
// bot: a registry of named commands, each built from an ordered sequence of
// prompting and acting states, driven one inbound message at a time with
// per-principal session state held outside the command definitions.
package conversation
