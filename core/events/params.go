package events

import "creditchain/core/types"

// TypeParamsUpdated is emitted when the parameters registry changes.
const TypeParamsUpdated = "params.updated"

type ParamsUpdated struct {
	Key string
	By  string
}

func (ParamsUpdated) EventType() string { return TypeParamsUpdated }

func (e ParamsUpdated) Event() *types.Event {
	return &types.Event{
		Type:       TypeParamsUpdated,
		Attributes: map[string]string{"key": trim(e.Key), "by": trim(e.By)},
	}
}
