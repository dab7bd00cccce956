package checkin

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"gatescan/internal/logger"
	"gatescan/internal/models"
	"gatescan/internal/rules"
)

// StoreLayer is the repository slice the validation core reads from. It is
// implemented by store.DB and mocked in tests.
type StoreLayer interface {
	ValidKeys(event string) ([]*models.TrustedKey, error)
	RevokedSecrets(event string) ([]*models.RevokedSecret, error)
	BlockedSecrets(event string) ([]*models.BlockedSecret, error)
	EventBySlug(slug string) (*models.Event, error)
	SubEventByID(id int64, event string) (*models.SubEvent, error)
	ItemByID(id int64, event string) (*models.Item, error)
	Questions(event string) ([]*models.Question, error)
	CheckInListByID(id int64, event string) (*models.CheckInList, error)
	PositionsBySecret(secret, event string) ([]*models.OrderPosition, error)
	AddonPositions(parentID int64) ([]*models.OrderPosition, error)
	CheckInRecords(secret string, listID int64) ([]*models.CheckInRecord, error)
	InsertCheckInRecord(record models.CheckInRecord) error
}

// QueueLayer is the slice of the offline queue the core needs: the durable
// enqueue and the pending requests feeding the history view.
type QueueLayer interface {
	Enqueue(qc models.QueuedCheckIn) error
	QueuedCheckIns(secret, event string, listID int64) ([]*models.QueuedCheckIn, error)
}

// Request is one validation call from the capture layer.
type Request struct {
	Secret       string           `json:"secret"`
	ListID       int64            `json:"list_id"`
	EventSlug    string           `json:"event_slug"`
	Direction    string           `json:"direction"`
	Force        bool             `json:"force"`
	IgnoreUnpaid bool             `json:"ignore_unpaid"`
	Answers      map[int64]string `json:"answers,omitempty"`
	Nonce        string           `json:"nonce,omitempty"`
}

// Service composes the per-stage checkers into one decision. Validation is
// synchronous and free of side effects except the final acceptance write.
type Service struct {
	Store StoreLayer
	Queue QueueLayer
	Log   *logger.Logger
	Gate  string
	Now   func() time.Time

	locks *secretLocks
}

func NewService(store StoreLayer, queue QueueLayer, log *logger.Logger, gate string) *Service {
	return &Service{
		Store: store,
		Queue: queue,
		Log:   log,
		Gate:  gate,
		Now:   time.Now,
		locks: newSecretLocks(),
	}
}

// Redeem runs one validation pass and, on acceptance, durably queues the
// redemption and applies the optimistic local check-in. The whole pass runs
// under the secret's lock. An error return is a system failure; domain
// rejections come back inside the Response.
func (s *Service) Redeem(req Request) (*Response, error) {
	if req.Secret == "" {
		return nil, fmt.Errorf("empty secret")
	}
	if req.Direction == "" {
		req.Direction = models.DirectionEntry
	}
	if req.Direction != models.DirectionEntry && req.Direction != models.DirectionExit {
		return nil, fmt.Errorf("unknown direction %q", req.Direction)
	}

	release := s.locks.acquire(req.Secret)
	defer release()

	now := s.Now()

	list, err := s.Store.CheckInListByID(req.ListID, req.EventSlug)
	if err != nil {
		return nil, fmt.Errorf("load check-in list %d: %w", req.ListID, err)
	}

	positions, err := s.Store.PositionsBySecret(req.Secret, req.EventSlug)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}

	var resp *Response
	if len(positions) > 0 {
		resp, err = s.redeemPosition(req, list, positions[0], now)
	} else {
		resp, err = s.redeemSigned(req, list, now)
	}
	if err != nil {
		return nil, err
	}

	if s.Log != nil {
		outcome := string(resp.Status)
		if resp.Reason != "" {
			outcome += "/" + string(resp.Reason)
		}
		s.Log.LogScan(req.ListID, req.Direction, outcome)
	}
	return resp, nil
}

// redeemPosition is the path for a secret found in the cached order data.
// Precedence is fixed: blocked flag, subevent match, product scope, order
// status, validity window, multi-entry policy, questions, list rules.
func (s *Service) redeemPosition(req Request, list *models.CheckInList, scanned *models.OrderPosition, now time.Time) (*Response, error) {
	if scanned.Blocked {
		return reject(ReasonBlocked), nil
	}

	if resp := CheckSubEvent(list, scanned.SubEventID); resp != nil {
		return resp, nil
	}

	var addons []*models.OrderPosition
	if list.AddonMatch {
		var err error
		addons, err = s.Store.AddonPositions(scanned.ID)
		if err != nil {
			return nil, fmt.Errorf("load addon positions: %w", err)
		}
	}
	matched, rejResp := SelectPosition(list, scanned, addons)
	if rejResp != nil {
		return rejResp, nil
	}

	order := matched.Order
	if order == nil {
		return nil, fmt.Errorf("position %d has no order loaded", matched.ID)
	}
	isExit := req.Direction == models.DirectionExit

	switch order.Status {
	case models.OrderStatusCanceled, models.OrderStatusExpired:
		return reject(ReasonCanceled), nil
	case models.OrderStatusPending:
		if !isExit && !req.Force {
			if !list.IncludePending || !req.IgnoreUnpaid {
				return reject(ReasonUnpaid), nil
			}
		}
	}

	history, err := s.history(matched.Secret, req.EventSlug, list.ID)
	if err != nil {
		return nil, err
	}

	if !req.Force {
		if resp := CheckValidityWindow(matched.ValidFrom, matched.ValidUntil, req.Direction, now); resp != nil {
			return resp, nil
		}
		if resp := CheckMultiEntry(list, history, req.Direction); resp != nil {
			return resp, nil
		}
		if !isExit {
			questions, err := s.Store.Questions(req.EventSlug)
			if err != nil {
				return nil, fmt.Errorf("load questions: %w", err)
			}
			if resp := CheckQuestions(questions, matched.ItemID, matched, req.Answers); resp != nil {
				return resp, nil
			}
		}
		if resp, err := s.checkRules(list, matched.ItemID, matched.VariationID, matched.SubEventID, req.EventSlug, history, now); resp != nil || err != nil {
			return resp, err
		}
	}

	attention, err := s.requiresAttention(matched.ItemID, matched.VariationID, req.EventSlug)
	if err != nil {
		return nil, err
	}

	if err := s.accept(req, matched.ID, matched.Secret, now); err != nil {
		return nil, err
	}
	return &Response{Status: StatusRedeemed, Position: matched, RequireAttention: attention}, nil
}

// redeemSigned is the path for a secret with no cached position: the ticket
// is admitted purely on its signature and the locally known scopes.
func (s *Service) redeemSigned(req Request, list *models.CheckInList, now time.Time) (*Response, error) {
	verifier := &Verifier{Store: s.Store}
	decoded, rejResp, err := verifier.Verify(req.Secret, req.EventSlug)
	if err != nil {
		return nil, err
	}
	if rejResp != nil {
		return rejResp, nil
	}

	if resp := CheckSubEvent(list, decoded.SubEvent); resp != nil {
		return resp, nil
	}
	if resp := CheckProductScope(list, decoded.Item, decoded.SubEvent); resp != nil {
		return resp, nil
	}

	history, err := s.history(req.Secret, req.EventSlug, list.ID)
	if err != nil {
		return nil, err
	}

	// The item may not be cached yet for a freshly signed ticket; the
	// checks that need catalog data degrade rather than reject.
	item, itemErr := s.Store.ItemByID(decoded.Item, req.EventSlug)
	isExit := req.Direction == models.DirectionExit

	if !req.Force {
		if resp := CheckValidityWindow(decoded.ValidFrom, decoded.ValidUntil, req.Direction, now); resp != nil {
			return resp, nil
		}
		if resp := CheckMultiEntry(list, history, req.Direction); resp != nil {
			return resp, nil
		}
		if !isExit && itemErr == nil {
			questions, err := s.Store.Questions(req.EventSlug)
			if err != nil {
				return nil, fmt.Errorf("load questions: %w", err)
			}
			if resp := CheckQuestions(questions, decoded.Item, nil, req.Answers); resp != nil {
				return resp, nil
			}
		}
		if resp, err := s.checkRules(list, decoded.Item, decoded.Variation, decoded.SubEvent, req.EventSlug, history, now); resp != nil || err != nil {
			return resp, err
		}
	}

	attention := false
	if itemErr == nil {
		attention = item.CheckInAttention
		if v := item.Variation(decoded.Variation); v != nil && v.CheckInAttention {
			attention = true
		}
	}

	if err := s.accept(req, 0, req.Secret, now); err != nil {
		return nil, err
	}
	return &Response{Status: StatusRedeemed, RequireAttention: attention}, nil
}

func (s *Service) history(secret, event string, listID int64) (*HistoryView, error) {
	records, err := s.Store.CheckInRecords(secret, listID)
	if err != nil {
		return nil, fmt.Errorf("load check-in records: %w", err)
	}
	queued, err := s.Queue.QueuedCheckIns(secret, event, listID)
	if err != nil {
		return nil, fmt.Errorf("load queued check-ins: %w", err)
	}
	return NewHistoryView(records, queued, s.timezone(event)), nil
}

func (s *Service) timezone(event string) *time.Location {
	ev, err := s.Store.EventBySlug(event)
	if err != nil || ev.Timezone == "" {
		return time.Local
	}
	tz, err := time.LoadLocation(ev.Timezone)
	if err != nil {
		return time.Local
	}
	return tz
}

// checkRules evaluates the list's rule expression. A malformed expression is
// a ParsingError response, never a crash; a well-formed expression that does
// not come out true rejects on rule grounds.
func (s *Service) checkRules(list *models.CheckInList, itemID, variationID, subEventID int64, event string, history *HistoryView, now time.Time) (*Response, error) {
	if list.Rules == "" {
		return nil, nil
	}

	ctx := &rules.Context{
		Now:         now,
		Timezone:    s.timezone(event),
		Gate:        s.Gate,
		ItemID:      itemID,
		VariationID: variationID,
		History:     history,
	}
	if ev, err := s.Store.EventBySlug(event); err == nil {
		ctx.Event = ev
	}
	if subEventID != 0 {
		if sub, err := s.Store.SubEventByID(subEventID, event); err == nil {
			ctx.SubEvent = sub
		}
	}

	ok, err := rules.Evaluate(list.Rules, ctx)
	if err != nil {
		return rejectDetail(ReasonParsingError, err.Error()), nil
	}
	if !ok {
		return reject(ReasonRules), nil
	}
	return nil, nil
}

func (s *Service) requiresAttention(itemID, variationID int64, event string) (bool, error) {
	item, err := s.Store.ItemByID(itemID, event)
	if err != nil {
		return false, fmt.Errorf("load item %d: %w", itemID, err)
	}
	if item.CheckInAttention {
		return true, nil
	}
	if v := item.Variation(variationID); v != nil && v.CheckInAttention {
		return true, nil
	}
	return false, nil
}

// accept durably queues the redemption, then applies the optimistic local
// record. The enqueue must complete first: a crash in between leaves a
// queued request whose nonce reconciles on the next sync.
func (s *Service) accept(req Request, positionID int64, secret string, now time.Time) error {
	nonce := req.Nonce
	if nonce == "" {
		nonce = uuid.New().String()
	}

	qc := models.QueuedCheckIn{
		Nonce:        nonce,
		Secret:       secret,
		ListID:       req.ListID,
		EventSlug:    req.EventSlug,
		Direction:    req.Direction,
		Force:        req.Force,
		IgnoreUnpaid: req.IgnoreUnpaid,
		Datetime:     now,
		Answers:      req.Answers,
	}
	if err := s.Queue.Enqueue(qc); err != nil {
		return fmt.Errorf("enqueue redemption %s: %w", nonce, err)
	}

	record := models.CheckInRecord{
		PositionID: positionID,
		Secret:     secret,
		ListID:     req.ListID,
		EventSlug:  req.EventSlug,
		Direction:  req.Direction,
		Datetime:   now,
		Nonce:      nonce,
		Source:     models.CheckInSourceLocal,
	}
	if err := s.Store.InsertCheckInRecord(record); err != nil {
		// The queued request holds the truth; the optimistic record only
		// feeds the local view and is rebuilt by the nonce on sync.
		if s.Log != nil {
			s.Log.Error("SCAN", fmt.Sprintf("optimistic record for %s failed: %v", nonce, err))
		}
	}
	return nil
}
