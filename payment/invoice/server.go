package invoice

import (
	"net/http"

	"go-invoice/payment/qrcode"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type payHandler struct {
	svc     *Service
	token   common.Address
	chainID int64
}

// RegisterHandlers mounts the invoice API on r. guard runs before every route that appends to
// the ledger.
func RegisterHandlers(r gin.IRouter, svc *Service, token common.Address, chainID int64, guard ...gin.HandlerFunc) {
	ph := &payHandler{svc: svc, token: token, chainID: chainID}

	g := r.Group("/api/invoices")
	g.GET("", ph.handleList)
	g.GET("/:id", ph.handleStatus)
	g.GET("/:id/qrcode", ph.handleQRCode)

	guarded := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, guard...), h)
	}
	g.POST("", guarded(ph.handleCreate)...)
	g.POST("/:id/verify", guarded(ph.handleVerify)...)
	g.POST("/:id/deliver", guarded(ph.handleDeliver)...)
}

type createBody struct {
	Amount        *decimal.Decimal `json:"amount"`
	Memo          string           `json:"memo"`
	Payee         string           `json:"payee"`
	ExpirySeconds *int64           `json:"expiry_seconds"`
}

type verifyBody struct {
	Tx string `json:"tx"`
}

type deliverBody struct {
	ProofURL string `json:"proof_url"`
}

func abort(c *gin.Context, err error, tx string) {
	resp := NewErrorResponse(err, c.Param("id"), tx)
	c.AbortWithStatusJSON(resp.HTTPStatus, resp)
}

func (ph *payHandler) handleCreate(c *gin.Context) {
	var body createBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, badRequest("body", "%v", err), "")
		return
	}
	if body.Amount == nil {
		abort(c, badRequest("amount", "amount is required"), "")
		return
	}

	expiry := int64(DefaultExpiry)
	if body.ExpirySeconds != nil {
		expiry = *body.ExpirySeconds
	}

	rec, err := ph.svc.Create(CreateRequest{
		Amount:        *body.Amount,
		Memo:          body.Memo,
		Payee:         body.Payee,
		ExpirySeconds: expiry,
	})
	if err != nil {
		abort(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (ph *payHandler) handleStatus(c *gin.Context) {
	rec, err := ph.svc.Status(c.Param("id"))
	if err != nil {
		abort(c, err, "")
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (ph *payHandler) handleList(c *gin.Context) {
	recs, err := ph.svc.List(c.Query("status"))
	if err != nil {
		abort(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": recs, "count": len(recs)})
}

func (ph *payHandler) handleVerify(c *gin.Context) {
	var body verifyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, badRequest("body", "%v", err), "")
		return
	}

	settlement, err := ph.svc.Verify(c.Request.Context(), c.Param("id"), body.Tx)
	if err != nil {
		abort(c, err, body.Tx)
		return
	}
	c.JSON(http.StatusOK, settlement)
}

func (ph *payHandler) handleDeliver(c *gin.Context) {
	var body deliverBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, badRequest("body", "%v", err), "")
		return
	}

	rec, err := ph.svc.Deliver(c.Request.Context(), c.Param("id"), body.ProofURL)
	if err != nil {
		abort(c, err, "")
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (ph *payHandler) handleQRCode(c *gin.Context) {
	rec, err := ph.svc.Status(c.Param("id"))
	if err != nil {
		abort(c, err, "")
		return
	}

	uri, err := qrcode.InvoiceURI(rec, ph.token, ph.chainID)
	if err != nil {
		abort(c, badRequest("payee", "%v", err), "")
		return
	}

	png, err := qrcode.PNG(uri)
	if err != nil {
		abort(c, err, "")
		return
	}
	c.Header("X-Payment-URI", uri)
	c.Data(http.StatusOK, "image/png", png)
}
