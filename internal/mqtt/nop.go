package mqtt

import "github.com/sweeney/datatracker/internal/metric"

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishButton(ButtonEvent) error     { return nil }
func (NopPublisher) PublishReading(metric.Reading) error { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error     { return nil }
func (NopPublisher) Close() error                        { return nil }
func (NopPublisher) IsConnected() bool                   { return false }
