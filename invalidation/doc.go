// Package invalidation maps domain events to cache invalidations.
//
// An Engine owns a set of Rules. Each rule names an event type, either an
// exact string or a prefix ending in '*', and describes what to drop when a
// matching event arrives: a set of tags, a generated list of keys, or both.
// Matching rules run in descending Priority, with ties broken by
// registration order.
//
// Basic usage:
//
//	engine, err := invalidation.NewEngine(memCache, invalidation.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	err = engine.RegisterRule(invalidation.Rule{
//	    ID:           "user-updated",
//	    EventType:    "user.*",
//	    Tags:         []string{"users"},
//	    KeyGenerator: invalidation.TemplateKeys("user:{id}", "profile:{id}"),
//	    Enabled:      true,
//	})
//	res, err := engine.HandleEvent(ctx, invalidation.Event{
//	    Type: "user.updated",
//	    Data: map[string]any{"id": 42},
//	})
//
// A failing key generator does not stop the remaining rules; its error is
// returned joined with the others after every rule has run.
package invalidation
