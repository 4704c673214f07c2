package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/procurehub/webshop-backend/internal/cart"
	"github.com/procurehub/webshop-backend/internal/checkout"
	pkgerrors "github.com/procurehub/webshop-backend/pkg/errors"
	"github.com/procurehub/webshop-backend/pkg/logger"
	"github.com/procurehub/webshop-backend/pkg/metrics"
)

type cartAccess interface {
	Cart(ctx context.Context, owner string) (*cart.Cart, error)
	RecordLastOrderID(ctx context.Context, owner, orderID string) error
}

// SubmitResult reports a completed submission.
type SubmitResult struct {
	OrderID     string                `json:"orderId"`
	Attachments []checkout.Attachment `json:"attachments"`
}

// Service turns a validated checkout flow into a backend order.
type Service interface {
	Submit(ctx context.Context, owner string) (*SubmitResult, error)
}

type service struct {
	carts    cartAccess
	checkout checkout.Service
	erp      ERPClient
	files    checkout.FileStore
	logg     *logger.Logger
	metrics  *metrics.StorefrontMetrics
}

// NewService wires the submission flow.
func NewService(carts cartAccess, checkoutSvc checkout.Service, erp ERPClient, files checkout.FileStore, logg *logger.Logger, m *metrics.StorefrontMetrics) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart manager required")
	}
	if checkoutSvc == nil {
		return nil, fmt.Errorf("checkout service required")
	}
	if erp == nil {
		return nil, fmt.Errorf("erp client required")
	}
	if files == nil {
		return nil, fmt.Errorf("file store required")
	}
	return &service{
		carts:    carts,
		checkout: checkoutSvc,
		erp:      erp,
		files:    files,
		logg:     logg,
		metrics:  m,
	}, nil
}

// Submit validates the draft and cart, assembles and sends the order,
// persists the issued order id, uploads the attachments one after
// another, and only then clears the cart. The first failed upload
// aborts the rest and surfaces the error; the cart survives so the user
// can retry.
func (s *service) Submit(ctx context.Context, owner string) (*SubmitResult, error) {
	started := time.Now()

	flow, err := s.checkout.Flow(ctx, owner)
	if err != nil {
		return nil, err
	}
	draft := flow.Draft()

	c, err := s.carts.Cart(ctx, owner)
	if err != nil {
		return nil, err
	}

	snapshot := c.Entries()
	entries := make([]*cart.Entry, len(snapshot))
	for i := range snapshot {
		entries[i] = &snapshot[i]
	}

	if err := checkout.ValidateHead(draft, snapshot); err != nil {
		return nil, err
	}

	PropagateAccounting(draft.MaterialType, entries)

	propagated := make([]cart.Entry, len(entries))
	for i, entry := range entries {
		propagated[i] = *entry
	}
	if err := checkout.ValidateCart(propagated); err != nil {
		return nil, err
	}

	req := Build(draft, entries)

	orderID, err := s.erp.CreateOrder(ctx, req)
	if err != nil {
		s.metrics.IncOrderSubmitted("failure")
		return nil, err
	}

	if err := s.carts.RecordLastOrderID(ctx, owner, orderID); err != nil {
		// The order exists remotely; losing the local echo is not fatal.
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("persisting order id %s: %v", orderID, err))
		}
	}

	if err := s.uploadAttachments(ctx, orderID, draft.Attachments); err != nil {
		// The order was created remotely; only the upload failed.
		s.metrics.IncOrderSubmitted("upload_failure")
		return nil, err
	}

	c.Clear()

	s.metrics.IncOrderSubmitted("success")
	s.metrics.ObserveOrderDuration(time.Since(started))
	if s.logg != nil {
		s.logg.Info(ctx, fmt.Sprintf("order %s submitted with %d lines and %d attachments", orderID, len(req.Lines), len(draft.Attachments)))
	}

	result := &SubmitResult{OrderID: orderID, Attachments: make([]checkout.Attachment, len(draft.Attachments))}
	for i, att := range draft.Attachments {
		result.Attachments[i] = *att
	}
	return result, nil
}

// uploadAttachments runs strictly sequentially and aborts on the first
// failure, leaving later attachments pending.
func (s *service) uploadAttachments(ctx context.Context, orderID string, attachments []*checkout.Attachment) error {
	for _, att := range attachments {
		att.UploadState = checkout.UploadUploading
		att.ErrorMessage = ""

		body, err := s.files.Open(ctx, att.FileRef)
		if err != nil {
			att.UploadState = checkout.UploadError
			att.ErrorMessage = err.Error()
			s.metrics.IncAttachmentUpload("error")
			return pkgerrors.Wrap(pkgerrors.CodeTransport, err, fmt.Sprintf("opening attachment %s", att.FileName))
		}

		docID, err := s.erp.UploadAttachment(ctx, orderID, att.FileName, att.ContentType, body)
		body.Close()
		if err != nil {
			att.UploadState = checkout.UploadError
			att.ErrorMessage = err.Error()
			s.metrics.IncAttachmentUpload("error")
			return pkgerrors.Wrap(pkgerrors.CodeTransport, err, fmt.Sprintf("uploading attachment %s", att.FileName))
		}

		att.UploadState = checkout.UploadDone
		att.RemoteDocID = docID
		s.metrics.IncAttachmentUpload("success")
	}
	return nil
}
