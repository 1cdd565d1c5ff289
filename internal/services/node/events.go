package node

import (
	"github.com/bbernstein/dmxnet-go/pkg/artnet"
)

// DMXEvent is published on pubsub.TopicArtDMX for every ArtDMX packet the
// node decodes, whether or not a receiver listens on its address.
type DMXEvent struct {
	PortAddress artnet.PortAddress `json:"portAddress"`
	Universe    string             `json:"universe"`
	Sequence    byte               `json:"sequence"`
	Source      string             `json:"source"`
	Data        []byte             `json:"data"`
}
