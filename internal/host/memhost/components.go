package memhost

import (
	"github.com/google/uuid"
	"github.com/yohamta/donburi"

	"auravfx/server/internal/host"
)

type ModelData struct {
	AssetID   string
	Animation string
}

type IdentityData struct {
	ID     host.EntityID
	Handle uuid.UUID
}

type PlayerData struct {
	ID uuid.UUID
}

var (
	Transform = donburi.NewComponentType[host.Transform]()
	Model     = donburi.NewComponentType[ModelData]()
	Identity  = donburi.NewComponentType[IdentityData]()
	Player    = donburi.NewComponentType[PlayerData]()
)
