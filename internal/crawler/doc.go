// Package crawler defines the core types, configuration and per-page building
// blocks of the topic crawler: fetch outcome classification, soft-block
// detection, content routing and link discovery. The breadth-first loop that
// drives them lives in the scheduler package.
package crawler
