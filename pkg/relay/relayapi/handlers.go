package relayapi

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/raffleport/relay/pkg/asyncx"
	"github.com/raffleport/relay/pkg/errx"
	"github.com/raffleport/relay/pkg/jobx"
	"github.com/raffleport/relay/pkg/relay"
)

// JobQueue is the slice of the queue client the API needs.
type JobQueue interface {
	jobx.JobEnqueuer
	jobx.JobStatusReader
}

// ChainReader proxies read-only contract state. These calls carry no nonce
// or ordering concerns.
type ChainReader interface {
	RaffleStatus(ctx context.Context, raffleID *big.Int) (string, error)
	Paused(ctx context.Context) (bool, error)
	AccumulatedFees(ctx context.Context) (*big.Int, error)
	IsBlocklisted(ctx context.Context, account common.Address) (bool, error)
	SignerBalance(ctx context.Context) (*big.Int, error)
}

// Service exposes the relay over HTTP. Mutating endpoints validate, build
// a job and enqueue it; a 200 response means "accepted for processing",
// never "confirmed on-chain".
type Service struct {
	jobs          JobQueue
	monitor       *relay.Monitor
	reader        ChainReader
	mainQueue     string
	tokenDecimals int32
}

// NewService wires the API service.
func NewService(jobs JobQueue, monitor *relay.Monitor, reader ChainReader, mainQueue string, tokenDecimals int32) *Service {
	return &Service{
		jobs:          jobs,
		monitor:       monitor,
		reader:        reader,
		mainQueue:     mainQueue,
		tokenDecimals: tokenDecimals,
	}
}

// RegisterRoutes mounts all relay routes. auth guards every mutating
// endpoint; read-only monitoring stays open to the operator network.
func (s *Service) RegisterRoutes(app *fiber.App, auth fiber.Handler) {
	api := app.Group("/api/v1")

	raffles := api.Group("/raffles", auth)
	raffles.Post("/", s.handleCreateRaffle)
	raffles.Post("/archive", s.handleArchiveRaffles)
	raffles.Post("/:id/execute", s.handleExecuteRaffle)
	raffles.Post("/:id/cancel", s.handleCancelRaffle)
	raffles.Post("/:id/refund", s.handleExecuteRefund)

	admin := api.Group("/admin", auth)
	admin.Post("/pause", s.handlePause)
	admin.Post("/unpause", s.handleUnpause)
	admin.Post("/withdraw-fees", s.handleWithdrawFees)

	blocklist := api.Group("/blocklist", auth)
	blocklist.Post("/", s.handleBlocklistAdd)
	blocklist.Post("/batch", s.handleBlocklistBatch)
	blocklist.Delete("/:address", s.handleBlocklistRemove)

	api.Get("/queue/health", s.handleQueueHealth)
	api.Get("/jobs/:id", s.handleJobStatus)
	api.Get("/raffles/:id/status", s.handleRaffleStatus)
	api.Get("/blocklist/:address", s.handleBlocklistCheck)
	api.Get("/status", s.handleContractStatus)
}

// ---------------------------------------------------------------------------
// Mutating endpoints
// ---------------------------------------------------------------------------

func (s *Service) handleCreateRaffle(c *fiber.Ctx) error {
	var payload relay.CreateRafflePayload
	if err := c.BodyParser(&payload); err != nil {
		return respondError(c, apiErrors.NewWithCause(ErrBadBody, err))
	}
	if err := payload.Validate(s.tokenDecimals); err != nil {
		return respondError(c, err)
	}

	jobID, err := s.enqueue(c, relay.JobCreateRaffle, payload)
	if err != nil {
		return respondError(c, err)
	}
	return respondAccepted(c, jobID, "Raffle creation queued", fiber.Map{"referenceId": payload.ReferenceID})
}

func (s *Service) handleExecuteRaffle(c *fiber.Ctx) error {
	return s.raffleAction(c, relay.JobExecuteRaffle, "Raffle execution queued")
}

func (s *Service) handleCancelRaffle(c *fiber.Ctx) error {
	return s.raffleAction(c, relay.JobCancelRaffle, "Raffle cancellation queued")
}

func (s *Service) handleExecuteRefund(c *fiber.Ctx) error {
	return s.raffleAction(c, relay.JobExecuteRefund, "Refund execution queued")
}

func (s *Service) raffleAction(c *fiber.Ctx, jobType relay.JobType, message string) error {
	payload := relay.RafflePayload{RaffleID: c.Params("id")}
	if err := payload.Validate(); err != nil {
		return respondError(c, err)
	}

	jobID, err := s.enqueue(c, jobType, payload)
	if err != nil {
		return respondError(c, err)
	}
	return respondAccepted(c, jobID, message, fiber.Map{"raffleId": payload.RaffleID})
}

func (s *Service) handlePause(c *fiber.Ctx) error {
	return s.adminAction(c, relay.JobPause, "Contract pause queued")
}

func (s *Service) handleUnpause(c *fiber.Ctx) error {
	return s.adminAction(c, relay.JobUnpause, "Contract unpause queued")
}

func (s *Service) handleWithdrawFees(c *fiber.Ctx) error {
	return s.adminAction(c, relay.JobWithdrawFees, "Fee withdrawal queued")
}

func (s *Service) adminAction(c *fiber.Ctx, jobType relay.JobType, message string) error {
	jobID, err := s.enqueue(c, jobType, struct{}{})
	if err != nil {
		return respondError(c, err)
	}
	return respondAccepted(c, jobID, message, nil)
}

func (s *Service) handleBlocklistAdd(c *fiber.Ctx) error {
	var payload relay.BlocklistAddPayload
	if err := c.BodyParser(&payload); err != nil {
		return respondError(c, apiErrors.NewWithCause(ErrBadBody, err))
	}
	if err := payload.Validate(); err != nil {
		return respondError(c, err)
	}

	jobID, err := s.enqueue(c, relay.JobBlocklistAdd, payload)
	if err != nil {
		return respondError(c, err)
	}
	return respondAccepted(c, jobID, "Blocklist addition queued", fiber.Map{"address": payload.Address})
}

func (s *Service) handleBlocklistRemove(c *fiber.Ctx) error {
	payload := relay.BlocklistRemovePayload{Address: c.Params("address")}
	if err := payload.Validate(); err != nil {
		return respondError(c, err)
	}

	jobID, err := s.enqueue(c, relay.JobBlocklistRemove, payload)
	if err != nil {
		return respondError(c, err)
	}
	return respondAccepted(c, jobID, "Blocklist removal queued", fiber.Map{"address": payload.Address})
}

func (s *Service) handleBlocklistBatch(c *fiber.Ctx) error {
	var payload relay.BlocklistBatchPayload
	if err := c.BodyParser(&payload); err != nil {
		return respondError(c, apiErrors.NewWithCause(ErrBadBody, err))
	}
	if err := payload.Validate(); err != nil {
		return respondError(c, err)
	}

	jobID, err := s.enqueue(c, relay.JobBlocklistBatch, payload)
	if err != nil {
		return respondError(c, err)
	}
	return respondAccepted(c, jobID, "Batch blocklist addition queued", fiber.Map{"count": len(payload.Entries)})
}

func (s *Service) handleArchiveRaffles(c *fiber.Ctx) error {
	var payload relay.ArchiveRafflesPayload
	if err := c.BodyParser(&payload); err != nil {
		return respondError(c, apiErrors.NewWithCause(ErrBadBody, err))
	}
	if err := payload.Validate(); err != nil {
		return respondError(c, err)
	}

	jobID, err := s.enqueue(c, relay.JobArchiveRaffles, payload)
	if err != nil {
		return respondError(c, err)
	}
	return respondAccepted(c, jobID, "Raffle archival queued", fiber.Map{"count": len(payload.RaffleIDs)})
}

func (s *Service) enqueue(c *fiber.Ctx, jobType relay.JobType, payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", apiErrors.NewWithCause(ErrEnqueueFailed, err)
	}

	jobID, err := s.jobs.Enqueue(c.Context(), jobx.Job{
		Type:        string(jobType),
		Queue:       s.mainQueue,
		Payload:     raw,
		MaxAttempts: 1,
	})
	if err != nil {
		return "", apiErrors.NewWithCause(ErrEnqueueFailed, err)
	}
	return jobID, nil
}

// ---------------------------------------------------------------------------
// Read-only endpoints
// ---------------------------------------------------------------------------

func (s *Service) handleQueueHealth(c *fiber.Ctx) error {
	snapshot, err := s.monitor.Snapshot(c.Context())
	if err != nil {
		return respondError(c, apiErrors.NewWithCause(ErrSnapshotFailed, err))
	}
	return c.JSON(snapshot)
}

func (s *Service) handleJobStatus(c *fiber.Ctx) error {
	info, err := s.jobs.GetJob(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"job":     info,
	})
}

func (s *Service) handleRaffleStatus(c *fiber.Ctx) error {
	id, ok := new(big.Int).SetString(c.Params("id"), 10)
	if !ok {
		return respondError(c, apiErrors.NewWithMessage(ErrBadBody, "raffle id must be numeric"))
	}

	status, err := s.reader.RaffleStatus(c.Context(), id)
	if err != nil {
		return respondError(c, apiErrors.NewWithCause(ErrChainRead, err))
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"raffleId": c.Params("id"),
		"status":   status,
	})
}

func (s *Service) handleBlocklistCheck(c *fiber.Ctx) error {
	raw := c.Params("address")
	if !common.IsHexAddress(raw) {
		return respondError(c, apiErrors.NewWithMessage(ErrBadBody, "invalid address"))
	}
	address := common.HexToAddress(raw)

	blocked, err := s.reader.IsBlocklisted(c.Context(), address)
	if err != nil {
		return respondError(c, apiErrors.NewWithCause(ErrChainRead, err))
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"address":     address.Hex(),
		"blocklisted": blocked,
	})
}

func (s *Service) handleContractStatus(c *fiber.Ctx) error {
	ctx := c.Context()

	paused := asyncx.Run(func() (bool, error) { return s.reader.Paused(ctx) })
	fees := asyncx.Run(func() (*big.Int, error) { return s.reader.AccumulatedFees(ctx) })
	balance := asyncx.Run(func() (*big.Int, error) { return s.reader.SignerBalance(ctx) })

	isPaused, err := paused.Await()
	if err != nil {
		return respondError(c, apiErrors.NewWithCause(ErrChainRead, err))
	}
	feeAmount, err := fees.Await()
	if err != nil {
		return respondError(c, apiErrors.NewWithCause(ErrChainRead, err))
	}
	signerBalance, err := balance.Await()
	if err != nil {
		return respondError(c, apiErrors.NewWithCause(ErrChainRead, err))
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"paused":          isPaused,
		"accumulatedFees": feeAmount.String(),
		"signerBalance":   signerBalance.String(),
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func respondAccepted(c *fiber.Ctx, jobID, message string, echo fiber.Map) error {
	payload := fiber.Map{
		"success": true,
		"jobId":   jobID,
		"message": message,
	}
	for k, v := range echo {
		payload[k] = v
	}
	return c.JSON(payload)
}

func respondError(c *fiber.Ctx, err error) error {
	var coded *errx.Error
	if errx.As(err, &coded) {
		return c.Status(coded.HTTPStatus).JSON(fiber.Map{
			"success": false,
			"error":   coded.Code,
			"message": coded.Message,
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "INTERNAL",
		"message": err.Error(),
	})
}
