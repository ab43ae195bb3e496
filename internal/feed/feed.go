// Package feed defines the national rail feed subscriptions and the
// decoders that fold their payloads into the document store.
package feed

import "context"

// Subscription pairs a broker topic with the durable name the broker
// retains across disconnects for that topic.
type Subscription struct {
	Topic   string
	Durable string
}

// Decoder consumes one raw payload and produces zero or more store
// mutations. Malformed payloads are dropped with a warning; a decoder
// never returns an error to the feed manager because the message has
// already been acknowledged.
type Decoder interface {
	Decode(ctx context.Context, payload []byte)
}

// Feed is one configured upstream feed: its subscriptions plus the
// decoder payloads from those topics are dispatched to.
type Feed struct {
	Name          string
	Subscriptions []Subscription
	Decoder       Decoder
}

// Matches reports whether a payload's destination header belongs to this
// feed's topic set.
func (f *Feed) Matches(destination string) bool {
	for _, sub := range f.Subscriptions {
		if sub.Topic == destination {
			return true
		}
	}
	return false
}
