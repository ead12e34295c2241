package core

import (
	"FlightSurety/internal/errs"
	"FlightSurety/internal/event"
	"FlightSurety/internal/ledger"
	"fmt"
)

// effect is what a handler produced; it is only built once every
// precondition passed.
type effect struct {
	batch   *ledger.Batch
	notes   []event.Notification
	receipt Receipt
}

func isPayable(ct event.CallType) bool {
	switch ct {
	case event.CallTypeFundAirline, event.CallTypeBuyInsurance, event.CallTypeRegisterOracle:
		return true
	}
	return false
}

func (e *Engine) dispatch(call event.Call, seq int64, payer Payer) (effect, error) {
	if call.Sender().IsZero() {
		return effect{}, errs.ErrInvalidCallPayload.With("caller is the zero address")
	}
	if call.Payment() < 0 {
		return effect{}, errs.ErrInvalidCallPayload.With("negative value %d", call.Payment())
	}
	if call.Payment() != 0 && !isPayable(call.CallType()) {
		return effect{}, errs.ErrUnexpectedValue.With("%s is not payable", call.CallType())
	}

	// Operational gate: everything but the toggle itself
	if call.CallType() != event.CallTypeSetOperatingStatus {
		if err := e.treasury.RequireOperational(); err != nil {
			return effect{}, err
		}
	}

	src := ledger.Source{
		Ref:       call.IdempotencyKey(),
		Sequence:  seq,
		Timestamp: call.CallTimestamp().UnixMicro(),
	}

	switch c := call.(type) {
	case *event.SetOperatingStatus:
		return e.handleSetOperatingStatus(c)
	case *event.AuthorizeCaller:
		return e.handleAuthorizeCaller(c)
	case *event.RegisterAirline:
		return e.handleRegisterAirline(c)
	case *event.FundAirline:
		return e.handleFundAirline(c, src)
	case *event.RegisterFlight:
		return e.handleRegisterFlight(c, src)
	case *event.BuyInsurance:
		return e.handleBuyInsurance(c, src)
	case *event.FetchFlightStatus:
		return e.handleFetchFlightStatus(c, src)
	case *event.RegisterOracle:
		return e.handleRegisterOracle(c, src)
	case *event.SubmitOracleResponse:
		return e.handleSubmitOracleResponse(c, src)
	case *event.CreditInsurees:
		return e.handleCreditInsurees(c, src)
	case *event.PayInsuree:
		return e.handlePayInsuree(c, src, payer)
	default:
		return effect{}, fmt.Errorf("unknown call type: %T", call)
	}
}

// applyBatch moves funds on behalf of the application identity.
func (e *Engine) applyBatch(batch *ledger.Batch) error {
	if err := e.validator.ValidateBatchBalance(batch); err != nil {
		panic(fmt.Sprintf("FATAL: malformed batch: %v", err))
	}
	return e.balanceTracker.ApplyBatch(batch)
}

func (e *Engine) handleSetOperatingStatus(c *event.SetOperatingStatus) (effect, error) {
	changed, err := e.treasury.SetOperatingStatus(c.Caller, c.Operational)
	if err != nil {
		return effect{}, err
	}
	var fx effect
	if changed {
		fx.notes = append(fx.notes, event.OperatingStatusChanged{Operational: c.Operational})
	}
	return fx, nil
}

func (e *Engine) handleAuthorizeCaller(c *event.AuthorizeCaller) (effect, error) {
	if c.Target.IsZero() {
		return effect{}, errs.ErrInvalidCallPayload.With("target is the zero address")
	}
	if err := e.treasury.Authorize(c.Caller, c.Target, c.Revoke); err != nil {
		return effect{}, err
	}
	return effect{notes: []event.Notification{
		event.CallerAuthorized{Target: c.Target, Authorized: !c.Revoke},
	}}, nil
}

func (e *Engine) handleRegisterAirline(c *event.RegisterAirline) (effect, error) {
	res, err := e.airlines.Register(c.Name, c.Candidate, c.Caller)
	if err != nil {
		return effect{}, err
	}

	if res.Registered {
		return effect{notes: []event.Notification{event.AirlineRegistered{
			Airline: c.Candidate,
			Name:    e.airlines.Get(c.Candidate).Name,
			Votes:   res.Votes,
		}}}, nil
	}
	return effect{notes: []event.Notification{event.AirlineVoteCast{
		Candidate: c.Candidate,
		Voter:     c.Caller,
		Votes:     res.Votes,
		Required:  res.Required,
	}}}, nil
}

func (e *Engine) handleFundAirline(c *event.FundAirline, src ledger.Source) (effect, error) {
	// PRE-CHECK
	if err := e.airlines.CheckFund(c.Caller, c.Value, e.genesis.Params.SeedFunding); err != nil {
		return effect{}, err
	}
	if err := e.treasury.RequireAuthorized(e.genesis.AppID); err != nil {
		return effect{}, err
	}
	batch, err := e.journalGen.GenerateAirlineFunding(src, c.Value)
	if err != nil {
		return effect{}, err
	}

	// APPLY
	if err := e.applyBatch(batch); err != nil {
		return effect{}, err
	}
	e.airlines.MarkFunded(c.Caller, c.Value)

	return effect{
		batch: batch,
		notes: []event.Notification{event.AirlineFunded{Airline: c.Caller, Amount: c.Value}},
	}, nil
}

func (e *Engine) handleRegisterFlight(c *event.RegisterFlight, src ledger.Source) (effect, error) {
	if err := e.airlines.RequireFunded(c.Caller); err != nil {
		return effect{}, err
	}
	if _, err := e.flights.Register(c.Key(), src.Timestamp); err != nil {
		return effect{}, err
	}
	return effect{notes: []event.Notification{event.FlightRegistered{Flight: c.Key()}}}, nil
}

func (e *Engine) handleBuyInsurance(c *event.BuyInsurance, src ledger.Source) (effect, error) {
	// PRE-CHECK
	if err := e.insurance.CheckPurchase(c.Flight, c.Caller, c.Value); err != nil {
		return effect{}, err
	}
	if err := e.treasury.RequireAuthorized(e.genesis.AppID); err != nil {
		return effect{}, err
	}
	batch, err := e.journalGen.GeneratePremium(src, c.Value)
	if err != nil {
		return effect{}, err
	}

	// APPLY
	if err := e.applyBatch(batch); err != nil {
		return effect{}, err
	}
	e.insurance.RecordPurchase(c.Flight, c.Caller)

	return effect{
		batch: batch,
		notes: []event.Notification{event.InsurancePurchased{
			Flight:    c.Flight,
			Passenger: c.Caller,
			Premium:   c.Value,
		}},
	}, nil
}

func (e *Engine) handleFetchFlightStatus(c *event.FetchFlightStatus, src ledger.Source) (effect, error) {
	f, err := e.flights.Lookup(c.Flight)
	if err != nil {
		return effect{}, err
	}
	if f.Status != event.StatusUnknown {
		return effect{}, errs.ErrStatusFinalized.With("flight %s is %s", c.Flight, f.Status)
	}

	req := e.oracles.OpenRequest(c.Flight, c.Caller, e.hasher.GetPrevHash(), src.Timestamp)

	return effect{
		notes: []event.Notification{event.OracleRequest{
			RequestID: req.ID,
			Index:     req.Key.Index,
			Flight:    c.Flight,
		}},
		receipt: Receipt{RequestID: req.ID, Index: req.Key.Index},
	}, nil
}

func (e *Engine) handleRegisterOracle(c *event.RegisterOracle, src ledger.Source) (effect, error) {
	// PRE-CHECK
	if err := e.oracles.CheckRegister(c.Caller, c.Value); err != nil {
		return effect{}, err
	}

	var batch *ledger.Batch
	if c.Value > 0 {
		if err := e.treasury.RequireAuthorized(e.genesis.AppID); err != nil {
			return effect{}, err
		}
		var err error
		if batch, err = e.journalGen.GenerateOracleFee(src, c.Value); err != nil {
			return effect{}, err
		}
		// APPLY
		if err := e.applyBatch(batch); err != nil {
			return effect{}, err
		}
	}

	o := e.oracles.Register(c.Caller, e.hasher.GetPrevHash())

	return effect{
		batch:   batch,
		notes:   []event.Notification{event.OracleRegistered{Oracle: c.Caller, Indexes: o.Indexes}},
		receipt: Receipt{Indexes: o.Indexes},
	}, nil
}

func (e *Engine) handleSubmitOracleResponse(c *event.SubmitOracleResponse, src ledger.Source) (effect, error) {
	// PRE-CHECK
	out, err := e.oracles.CheckResponse(c.Caller, c.Index, c.Flight, c.StatusCode)
	if err != nil {
		return effect{}, err
	}
	if out.Ignored {
		// late response to a closed request
		return effect{receipt: Receipt{RequestID: out.RequestID}}, nil
	}
	if out.Finalized {
		if _, err := e.flights.CheckFinalize(c.Flight, c.StatusCode); err != nil {
			return effect{}, err
		}
	}

	// APPLY
	out = e.oracles.RecordResponse(c.Caller, c.Index, c.Flight, c.StatusCode)
	fx := effect{
		notes: []event.Notification{event.OracleReport{
			RequestID:  out.RequestID,
			Index:      c.Index,
			Flight:     c.Flight,
			Oracle:     c.Caller,
			StatusCode: c.StatusCode,
			Votes:      out.Votes,
		}},
		receipt: Receipt{RequestID: out.RequestID},
	}

	if out.Finalized {
		if _, err := e.flights.FinalizeStatus(c.Flight, c.StatusCode, src.Timestamp); err != nil {
			panic(fmt.Sprintf("FATAL: finalize after pre-check: %v", err))
		}
		if c.StatusCode != event.StatusUnknown {
			e.oracles.CloseFlight(c.Flight, c.StatusCode)
		}
		fx.notes = append(fx.notes, event.FlightStatusUpdated{
			RequestID:  out.RequestID,
			Flight:     c.Flight,
			StatusCode: c.StatusCode,
		})
	}
	return fx, nil
}

func (e *Engine) handleCreditInsurees(c *event.CreditInsurees, src ledger.Source) (effect, error) {
	// PRE-CHECK
	if err := e.treasury.RequireOwner(c.Caller); err != nil {
		return effect{}, err
	}
	credits, err := e.insurance.PlanCredits(c.Flight)
	if err != nil {
		return effect{}, err
	}
	if len(credits) == 0 {
		// not LateAirline, nobody insured, or already credited
		return effect{}, nil
	}
	if err := e.treasury.RequireAuthorized(e.genesis.AppID); err != nil {
		return effect{}, err
	}
	batch, err := e.journalGen.GenerateInsureeCredits(src, credits)
	if err != nil {
		return effect{}, err
	}

	// APPLY
	if err := e.applyBatch(batch); err != nil {
		return effect{}, err
	}
	e.insurance.MarkCredited(c.Flight)

	fx := effect{batch: batch, notes: make([]event.Notification, 0, len(credits))}
	for _, cr := range credits {
		fx.notes = append(fx.notes, event.InsureeCredited{
			Flight:    c.Flight,
			Passenger: cr.Passenger,
			Amount:    cr.Amount,
		})
		fx.receipt.Amount += cr.Amount
	}
	if e.metrics != nil {
		e.metrics.InsureesCredited.Add(float64(len(credits)))
	}
	return fx, nil
}

func (e *Engine) handlePayInsuree(c *event.PayInsuree, src ledger.Source, payer Payer) (effect, error) {
	// PRE-CHECK
	owed := e.balanceTracker.PassengerCredit(c.Caller)
	if owed <= 0 {
		return effect{}, errs.ErrNoCredit.With("passenger %s", c.Caller)
	}
	if err := e.treasury.RequireAuthorized(e.genesis.AppID); err != nil {
		return effect{}, err
	}
	batch, err := e.journalGen.GeneratePayout(src, c.Caller, owed)
	if err != nil {
		return effect{}, err
	}

	// APPLY: zero the credit before the external transfer
	if err := e.applyBatch(batch); err != nil {
		return effect{}, err
	}
	if err := payer.Transfer(c.Caller, owed); err != nil {
		e.balanceTracker.RevertBatch(batch)
		return effect{}, errs.ErrTransferFailed.With("paying %s: %v", c.Caller, err)
	}

	if e.metrics != nil {
		e.metrics.PayoutsTotal.Inc()
	}
	return effect{
		batch:   batch,
		notes:   []event.Notification{event.InsureePaid{Passenger: c.Caller, Amount: owed}},
		receipt: Receipt{Amount: owed},
	}, nil
}
