package controller

import (
	"resonance-field-be/internal/constant"
	"resonance-field-be/internal/dto"
	"resonance-field-be/internal/handler"
	"resonance-field-be/internal/pkg/serverutils"
	"resonance-field-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

// IFieldController is the read-only REST surface: stats, session and
// group listings, the tag catalog, and the websocket entry point. All
// mutation happens over the websocket, where lifetime is tied to the
// connection.
type IFieldController interface {
	RegisterRoutes(r fiber.Router)
	Stats(ctx *fiber.Ctx) error
	Sessions(ctx *fiber.Ctx) error
	Groups(ctx *fiber.Ctx) error
	Connections(ctx *fiber.Ctx) error
	Catalog(ctx *fiber.Ctx) error
}

type fieldController struct {
	sessions  service.ISessionService
	groups    service.IGroupService
	resonance service.IResonanceService
	capacity  service.ICapacityService
	wsHandler *handler.FieldWsHandler
}

func NewFieldController(
	sessions service.ISessionService,
	groups service.IGroupService,
	resonance service.IResonanceService,
	capacity service.ICapacityService,
	wsHandler *handler.FieldWsHandler,
) IFieldController {
	return &fieldController{
		sessions:  sessions,
		groups:    groups,
		resonance: resonance,
		capacity:  capacity,
		wsHandler: wsHandler,
	}
}

func (c *fieldController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/field/v1")
	h.Get("/stats", c.Stats)
	h.Get("/sessions", c.Sessions)
	h.Get("/groups", c.Groups)
	h.Get("/connections", c.Connections)
	h.Get("/catalog", c.Catalog)
	h.Get("/ws", c.wsHandler.ServeWs)
}

func (c *fieldController) Stats(ctx *fiber.Ctx) error {
	status, err := c.capacity.CheckCapacity(ctx.Context())
	if err != nil {
		return err
	}
	groups, err := c.groups.ListAll(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get field stats", dto.FieldStatsResponse{
		CurrentCount: status.CurrentCount,
		MaxCount:     status.MaxCount,
		CanConnect:   status.CanConnect,
		GroupCount:   len(groups),
	}))
}

func (c *fieldController) Sessions(ctx *fiber.Ctx) error {
	sessions, err := c.sessions.ListAll(ctx.Context(), "")
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get sessions", sessions))
}

func (c *fieldController) Groups(ctx *fiber.Ctx) error {
	groups, err := c.groups.ListAll(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get groups", groups))
}

func (c *fieldController) Connections(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get connections", c.resonance.Current()))
}

func (c *fieldController) Catalog(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get catalog", dto.CatalogResponse{
		Affinities: constant.Affinities,
		Moods:      constant.Moods,
	}))
}
