// Package handler exposes the ingestion engine over HTTP.
package handler

import (
	"github.com/rs/zerolog"

	"clinic-schedule-ingest/internal/export"
	"clinic-schedule-ingest/internal/remote"
	"clinic-schedule-ingest/internal/securestore"
)

// Handler wires the parse pipeline, storage engine and codec to routes.
type Handler struct {
	engine     *securestore.Engine
	codec      *export.Codec
	remote     *remote.Adapter
	secret     string
	clientID   string
	clientHash string // bcrypt hash of the service credential
	log        zerolog.Logger
}

// New builds a Handler. clientID/clientHash gate token issuance.
func New(engine *securestore.Engine, codec *export.Codec, adapter *remote.Adapter,
	secret, clientID, clientHash string, logger *zerolog.Logger) *Handler {
	log := zerolog.Nop()
	if logger != nil {
		log = *logger
	}
	return &Handler{
		engine:     engine,
		codec:      codec,
		remote:     adapter,
		secret:     secret,
		clientID:   clientID,
		clientHash: clientHash,
		log:        log,
	}
}
