package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/coursekit/coursekit/internal/pkg/database"
	"github.com/coursekit/coursekit/internal/pkg/transfer"
	"github.com/coursekit/coursekit/internal/pkg/usercontext"
)

// TransferController handles purchase ownership transfer HTTP requests.
type TransferController struct {
	transfers *transfer.Service
}

// NewTransferController creates a transfer controller around the workflow service.
func NewTransferController(transfers *transfer.Service) *TransferController {
	return &TransferController{transfers: transfers}
}

// HandleInitiateTransfer opens a transfer of a purchase to a target email.
func (tc *TransferController) HandleInitiateTransfer(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req struct {
		PurchaseID  uint   `json:"purchase_id"`
		TargetEmail string `json:"target_email"`
	}
	if err := c.BodyParser(&req); err != nil || req.PurchaseID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing purchase id"})
	}

	t, err := tc.transfers.Initiate(c.Context(), req.PurchaseID, userCtx.UserID, req.TargetEmail)
	if err != nil {
		return jsonEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(t)
}

// HandleCancelTransfer cancels an open transfer. Only the source user or an
// admin may cancel.
func (tc *TransferController) HandleCancelTransfer(c *fiber.Ctx) error {
	transferID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid transfer id"})
	}

	userCtx := usercontext.GetUserContext(c)
	t, err := tc.transfers.Get(c.Context(), uint(transferID))
	if err != nil {
		return jsonEngineError(c, err)
	}
	if !userCtx.IsAdmin && t.SourceUserID != userCtx.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Not the transfer owner"})
	}

	t, err = tc.transfers.Cancel(c.Context(), uint(transferID))
	if err != nil {
		return jsonEngineError(c, err)
	}

	return c.JSON(t)
}

// HandleConfirmTransfer completes a transfer; the confirming user becomes
// the new owner of the purchase.
func (tc *TransferController) HandleConfirmTransfer(c *fiber.Ctx) error {
	transferID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid transfer id"})
	}

	userCtx := usercontext.GetUserContext(c)
	t, err := tc.transfers.Confirm(c.Context(), uint(transferID), userCtx.UserID)
	if err != nil {
		return jsonEngineError(c, err)
	}

	return c.JSON(t)
}

var transferController *TransferController

// GetTransferController returns the global transfer controller instance.
func GetTransferController() *TransferController {
	if transferController == nil {
		transferController = NewTransferController(transfer.NewServiceFromDB(database.GetDB()))
	}
	return transferController
}
