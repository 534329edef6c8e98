package accounts

import (
	"mime/multipart"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	localsAccountKey = "accounts.account"
	localsClaimsKey  = "accounts.claims"
)

// Response is the uniform envelope every endpoint answers with.
type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// HTTPController wires the identity operations into fiber routes.
type HTTPController struct {
	svc    *Service
	gate   *Gate
	logger Logger
}

// HTTPControllerOption customizes the controller.
type HTTPControllerOption func(*HTTPController)

// WithHTTPLogger overrides the fallback logger.
func WithHTTPLogger(logger Logger) HTTPControllerOption {
	return func(c *HTTPController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewHTTPController creates the transport adapter.
func NewHTTPController(svc *Service, gate *Gate, opts ...HTTPControllerOption) *HTTPController {
	c := &HTTPController{
		svc:    svc,
		gate:   gate,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// RegisterRoutes mounts every endpoint on the app.
func (h *HTTPController) RegisterRoutes(app *fiber.App) {
	auth := app.Group("/auth")
	auth.Post("/signup", h.Signup)
	auth.Post("/signin", h.Signin)
	auth.Post("/google", h.SignupOrSigninWithGoogle)
	auth.Post("/google/signup", h.SignupWithGoogle)
	auth.Post("/google/signin", h.SigninWithGoogle)
	auth.Get("/confirm", h.ConfirmEmail)
	auth.Post("/confirm/resend", h.ResendConfirmation)
	auth.Post("/refresh", h.requireAuth(TokenRefresh, false), h.Refresh)
	auth.Post("/logout", h.requireAuth(TokenAccess, false), h.Logout)
	auth.Patch("/password", h.requireAuth(TokenAccess, false), h.UpdatePassword)
	auth.Post("/password/forget", h.ForgetPassword)
	auth.Post("/password/reset", h.ResetPassword)

	accounts := app.Group("/accounts")
	accounts.Get("/me", h.requireAuth(TokenAccess, false), h.Profile)
	accounts.Patch("/me", h.requireAuth(TokenAccess, false), h.UpdateProfile)
	accounts.Put("/me/profile-image", h.requireAuth(TokenAccess, false), h.UploadProfileImage)
	accounts.Put("/me/cover-images", h.requireAuth(TokenAccess, false), h.UploadCoverImages)
	accounts.Get("/:id/profile", h.requireAuth(TokenAccess, false), h.PublicProfile)
	accounts.Post("/:id/freeze", h.requireAuth(TokenAccess, false), h.Freeze)
	accounts.Post("/:id/unfreeze", h.requireAuth(TokenAccess, true), h.Unfreeze)
	accounts.Delete("/:id", h.requireAuth(TokenAccess, true), h.Delete)
}

// requireAuth runs the authentication gate and stashes the account and
// claims for the handler. allowFrozen is reserved for the unfreeze/delete
// routes so a self-frozen owner can still act on their own account.
func (h *HTTPController) requireAuth(kind TokenKind, allowFrozen bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)

		var (
			account *Account
			claims  *Claims
			err     error
		)
		if allowFrozen {
			account, claims, err = h.gate.AuthenticateAllowFrozen(c.UserContext(), header, kind)
		} else {
			account, claims, err = h.gate.Authenticate(c.UserContext(), header, kind)
		}
		if err != nil {
			return err
		}

		c.Locals(localsAccountKey, account)
		c.Locals(localsClaimsKey, claims)

		ctx := WithAccountContext(c.UserContext(), account)
		c.SetUserContext(WithClaimsContext(ctx, claims))

		return c.Next()
	}
}

// ErrorHandler translates package errors into the response envelope. Wire
// it as the fiber app's ErrorHandler.
func (h *HTTPController) ErrorHandler(c *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		data := fiber.Map{}
		if richErr.TextCode != "" {
			data["code"] = richErr.TextCode
		}
		return c.Status(richErr.Code).JSON(Response{
			Message: richErr.Message,
			Data:    data,
		})
	}

	var fieldErrs validation.Errors
	if ok := asValidationErrors(err, &fieldErrs); ok {
		return c.Status(http.StatusBadRequest).JSON(Response{
			Message: "validation failed",
			Data:    fieldErrs,
		})
	}

	var fiberErr *fiber.Error
	if goerrors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(Response{Message: fiberErr.Message})
	}

	h.logger.Error("unhandled error: %v", err)
	return c.Status(http.StatusInternalServerError).JSON(Response{
		Message: "internal server error",
	})
}

func asValidationErrors(err error, target *validation.Errors) bool {
	if errs, ok := err.(validation.Errors); ok {
		*target = errs
		return true
	}
	return false
}

func (h *HTTPController) Signup(c *fiber.Ctx) error {
	var in SignupInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(err)
	}

	account, err := h.svc.Signup(c.UserContext(), in)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(Response{
		Message: "account created, confirmation email on its way",
		Data:    account,
	})
}

func (h *HTTPController) Signin(c *fiber.Ctx) error {
	var in SigninInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(err)
	}

	result, err := h.svc.Signin(c.UserContext(), in)
	if err != nil {
		return err
	}

	return c.JSON(Response{Message: "signed in", Data: result})
}

type federatedPayload struct {
	Credential string `json:"credential"`
}

func (h *HTTPController) SignupWithGoogle(c *fiber.Ctx) error {
	var in federatedPayload
	if err := c.BodyParser(&in); err != nil {
		return badBody(err)
	}

	result, err := h.svc.SignupWithGoogle(c.UserContext(), in.Credential)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(Response{Message: "account created", Data: result})
}

func (h *HTTPController) SigninWithGoogle(c *fiber.Ctx) error {
	var in federatedPayload
	if err := c.BodyParser(&in); err != nil {
		return badBody(err)
	}

	result, err := h.svc.SigninWithGoogle(c.UserContext(), in.Credential)
	if err != nil {
		return err
	}

	return c.JSON(Response{Message: "signed in", Data: result})
}

func (h *HTTPController) SignupOrSigninWithGoogle(c *fiber.Ctx) error {
	var in federatedPayload
	if err := c.BodyParser(&in); err != nil {
		return badBody(err)
	}

	result, err := h.svc.SignupOrSigninWithGoogle(c.UserContext(), in.Credential)
	if err != nil {
		return err
	}

	status := http.StatusOK
	message := "signed in"
	if result.Created {
		status = http.StatusCreated
		message = "account created"
	}

	return c.Status(status).JSON(Response{Message: message, Data: result})
}

func (h *HTTPController) ConfirmEmail(c *fiber.Ctx) error {
	account, err := h.svc.ConfirmEmail(c.UserContext(), c.Query("token"))
	if err != nil {
		return err
	}

	return c.JSON(Response{Message: "email confirmed", Data: account})
}

type emailPayload struct {
	Email string `json:"email"`
}

func (h *HTTPController) ResendConfirmation(c *fiber.Ctx) error {
	var in emailPayload
	if err := c.BodyParser(&in); err != nil {
		return badBody(err)
	}

	if err := h.svc.ResendConfirmation(c.UserContext(), in.Email); err != nil {
		return err
	}

	return c.JSON(Response{Message: "confirmation email on its way"})
}

func (h *HTTPController) Refresh(c *fiber.Ctx) error {
	account, claims := h.session(c)

	tokens, err := h.svc.Refresh(c.UserContext(), account, claims)
	if err != nil {
		return err
	}

	return c.JSON(Response{Message: "tokens refreshed", Data: tokens})
}

func (h *HTTPController) Logout(c *fiber.Ctx) error {
	_, claims := h.session(c)

	if err := h.svc.Logout(c.UserContext(), claims); err != nil {
		return err
	}

	return c.JSON(Response{Message: "signed out"})
}

func (h *HTTPController) UpdatePassword(c *fiber.Ctx) error {
	var in UpdatePasswordInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(err)
	}

	account, claims := h.session(c)
	if err := h.svc.UpdatePassword(c.UserContext(), account, claims, in); err != nil {
		return err
	}

	return c.JSON(Response{Message: "password updated, sign in again"})
}

func (h *HTTPController) ForgetPassword(c *fiber.Ctx) error {
	var in emailPayload
	if err := c.BodyParser(&in); err != nil {
		return badBody(err)
	}

	if err := h.svc.ForgetPassword(c.UserContext(), in.Email); err != nil {
		return err
	}

	return c.JSON(Response{Message: "reset code on its way"})
}

func (h *HTTPController) ResetPassword(c *fiber.Ctx) error {
	var in ResetPasswordInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(err)
	}

	if err := h.svc.ResetPassword(c.UserContext(), in); err != nil {
		return err
	}

	return c.JSON(Response{Message: "password reset, sign in again"})
}

func (h *HTTPController) Profile(c *fiber.Ctx) error {
	account, _ := h.session(c)

	view, err := h.svc.Profile(c.UserContext(), account)
	if err != nil {
		return err
	}

	return c.JSON(Response{Message: "profile", Data: view})
}

func (h *HTTPController) PublicProfile(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	view, err := h.svc.PublicProfile(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(Response{Message: "profile", Data: view})
}

func (h *HTTPController) UpdateProfile(c *fiber.Ctx) error {
	var in UpdateProfileInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(err)
	}

	account, _ := h.session(c)
	updated, err := h.svc.UpdateProfile(c.UserContext(), account, in)
	if err != nil {
		return err
	}

	return c.JSON(Response{Message: "profile updated", Data: updated})
}

func (h *HTTPController) UploadProfileImage(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return badBody(err)
	}

	file, err := openUpload(fileHeader)
	if err != nil {
		return err
	}
	defer file.Body.(multipart.File).Close()

	account, _ := h.session(c)
	updated, err := h.svc.UploadProfileImage(c.UserContext(), account, file)
	if err != nil {
		return err
	}

	return c.JSON(Response{Message: "profile image updated", Data: updated})
}

func (h *HTTPController) UploadCoverImages(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return badBody(err)
	}

	headers := form.File["images"]
	files := make([]UploadFile, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	for _, header := range headers {
		file, err := openUpload(header)
		if err != nil {
			return err
		}
		opened = append(opened, file.Body.(multipart.File))
		files = append(files, file)
	}

	account, _ := h.session(c)
	updated, err := h.svc.UploadCoverImages(c.UserContext(), account, files)
	if err != nil {
		return err
	}

	return c.JSON(Response{Message: "cover images updated", Data: updated})
}

func (h *HTTPController) Freeze(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	account, _ := h.session(c)
	frozen, err := h.svc.Freeze(c.UserContext(), account, id)
	if err != nil {
		return err
	}

	return c.JSON(Response{Message: "account frozen", Data: frozen})
}

func (h *HTTPController) Unfreeze(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	account, _ := h.session(c)
	restored, err := h.svc.Unfreeze(c.UserContext(), account, id)
	if err != nil {
		return err
	}

	return c.JSON(Response{Message: "account restored", Data: restored})
}

func (h *HTTPController) Delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	account, _ := h.session(c)
	if err := h.svc.Delete(c.UserContext(), account, id); err != nil {
		return err
	}

	return c.JSON(Response{Message: "account deleted"})
}

func (h *HTTPController) session(c *fiber.Ctx) (*Account, *Claims) {
	account, _ := c.Locals(localsAccountKey).(*Account)
	claims, _ := c.Locals(localsClaimsKey).(*Claims)
	return account, claims
}

func parseIDParam(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, goerrors.New("id must be a valid uuid", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	return id, nil
}

func badBody(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
		WithCode(goerrors.CodeBadRequest)
}

func openUpload(header *multipart.FileHeader) (UploadFile, error) {
	file, err := header.Open()
	if err != nil {
		return UploadFile{}, badBody(err)
	}

	return UploadFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}, nil
}
