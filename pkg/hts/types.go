package hts

import (
	"github.com/rs/zerolog"

	"github.com/skeetzo/minty-fresh-go/pkg/mirror"
	"github.com/skeetzo/minty-fresh-go/pkg/shared"
)

const (
	// MaxMetadataBytes is the network limit on a serial's metadata.
	MaxMetadataBytes = 100
	// MaxBatchSize bounds the serials minted or transferred per transaction.
	MaxBatchSize = 10
)

type Config struct {
	Operator shared.OperatorConfig
	TokenID  string
	// SupplyKey signs mint transactions. Empty means the operator key is
	// the supply key.
	SupplyKey string
	Memo      string
	// Mirror is used as is when set; otherwise a client for the operator's
	// network is built, honouring MirrorURL.
	Mirror    *mirror.Client
	MirrorURL string
	Logger    *zerolog.Logger
}
