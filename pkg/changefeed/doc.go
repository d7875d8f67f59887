/*
Package changefeed implements SoliDB's per-collection change feed
(spec §4.7): every document mutation publishes an Event on the owning
collection's broadcast Topic. Subscribers (triggers, stream operators,
replication, future cluster layers) subscribe lazily; each subscriber
channel is bounded and drops its oldest buffered event rather than
blocking the publisher when a slow consumer falls behind.
*/
package changefeed
