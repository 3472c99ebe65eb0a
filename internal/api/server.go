// Package api exposes the management REST surface of the connection
// manager. Handlers are thin callers of the profile store, interface state
// table, connection engine, and supervisor: no lifecycle logic lives here.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"netmand/internal/auth"
	"netmand/internal/drivers"
	"netmand/internal/engine"
	"netmand/internal/store"
	"netmand/internal/supervisor"
	"netmand/internal/utils"
)

// API holds the collaborator references the management endpoints call into.
type API struct {
	profiles *store.ProfileStore        // Profile CRUD
	states   *store.InterfaceStateTable // State queries
	eng      *engine.Engine             // Connect/disconnect operations
	sup      *supervisor.Supervisor     // Stats collection
	probe    drivers.DeviceProbe        // Live interface snapshots
	authSvc  *auth.Service              // Login and route protection
	qr       *utils.QRCodeGenerator     // WiFi QR export
}

// New creates the management API bound to the given components.
// Returns a pointer to the newly created API.
func New(profiles *store.ProfileStore, states *store.InterfaceStateTable, eng *engine.Engine, sup *supervisor.Supervisor, probe drivers.DeviceProbe, authSvc *auth.Service) *API {
	return &API{
		profiles: profiles,
		states:   states,
		eng:      eng,
		sup:      sup,
		probe:    probe,
		authSvc:  authSvc,
		qr:       utils.NewQRCodeGenerator(),
	}
}

// RegisterRoutes registers all management endpoints on the router. Every
// route except login requires a bearer token.
func (api *API) RegisterRoutes(router *gin.Engine) {
	router.POST("/api/auth/login", api.Login)

	protected := router.Group("/api", api.authSvc.RequireAuth())
	{
		profiles := protected.Group("/profiles")
		{
			profiles.GET("", api.ListProfiles)
			profiles.POST("", api.CreateProfile)
			profiles.GET("/:name", api.GetProfile)
			profiles.DELETE("/:name", api.DeleteProfile)
			profiles.POST("/:name/connect", api.ConnectProfile)
			profiles.GET("/:name/qrcode", api.ProfileQRCode)
		}

		interfaces := protected.Group("/interfaces")
		{
			interfaces.GET("", api.Snapshot)
			interfaces.GET("/states", api.ListStates)
			interfaces.GET("/:name/state", api.GetState)
			interfaces.POST("/:name/disconnect", api.DisconnectInterface)
			interfaces.POST("/:name/autoconnect", api.AutoConnectInterface)
		}

		protected.GET("/stats", api.Stats)
	}
}

// Login verifies credentials and issues a session token.
func (api *API) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	token, err := api.authSvc.Authenticate(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{Token: token})
}

// ListProfiles returns all profiles, optionally filtered by the interface
// query parameter, in selection order.
func (api *API) ListProfiles(c *gin.Context) {
	profiles, err := api.profiles.List(c.Query("interface"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, profiles)
}

// CreateProfile validates and stores a new connection profile.
func (api *API) CreateProfile(c *gin.Context) {
	var req CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	profile := req.Profile()
	if err := api.profiles.Create(profile); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateName):
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		case errors.Is(err, store.ErrInvalidProfile):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, profile)
}

// GetProfile returns one profile by name.
func (api *API) GetProfile(c *gin.Context) {
	profile, err := api.profiles.Get(c.Param("name"))
	if err != nil {
		api.profileError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// DeleteProfile removes a profile by name. Deleting an absent profile is an
// error, not a no-op, so repeated deletes surface as 404.
func (api *API) DeleteProfile(c *gin.Context) {
	if err := api.profiles.Delete(c.Param("name")); err != nil {
		api.profileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "profile deleted"})
}

// ConnectProfile runs an explicit connection attempt for the named profile.
// A driver failure is reported in the response body along with the recorded
// error rather than as a transport-level error.
func (api *API) ConnectProfile(c *gin.Context) {
	name := c.Param("name")
	err := api.eng.Connect(c.Request.Context(), name)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, ConnectResponse{Connected: true, Profile: name})
	case errors.Is(err, engine.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, engine.ErrAttemptInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusOK, ConnectResponse{Connected: false, Profile: name, Error: err.Error()})
	}
}

// ProfileQRCode returns a WiFi join QR code for a wireless profile.
func (api *API) ProfileQRCode(c *gin.Context) {
	profile, err := api.profiles.Get(c.Param("name"))
	if err != nil {
		api.profileError(c, err)
		return
	}

	png, err := api.qr.GenerateBase64(profile)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, QRCodeResponse{Profile: profile.Name, PNG: png})
}

// Snapshot returns the probe's live view of the machine's interfaces.
func (api *API) Snapshot(c *gin.Context) {
	snapshot, err := api.probe.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// ListStates returns the state table's view of every known interface.
func (api *API) ListStates(c *gin.Context) {
	states, err := api.states.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, states)
}

// GetState returns the state record for one interface, creating the default
// record if the interface has never been referenced.
func (api *API) GetState(c *gin.Context) {
	state, err := api.states.Get(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

// DisconnectInterface tears down the connection on an interface.
// Bookkeeping is applied even when the driver fails, in which case the
// response reports the failure detail.
func (api *API) DisconnectInterface(c *gin.Context) {
	iface := c.Param("name")
	err := api.eng.Disconnect(c.Request.Context(), iface)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, ConnectResponse{Connected: false, Interface: iface})
	case errors.Is(err, engine.ErrAttemptInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusOK, ConnectResponse{Connected: false, Interface: iface, Error: err.Error()})
	}
}

// AutoConnectInterface runs ordered auto-connect selection for an interface.
func (api *API) AutoConnectInterface(c *gin.Context) {
	iface := c.Param("name")
	err := api.eng.SelectAndConnect(c.Request.Context(), iface)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, ConnectResponse{Connected: true, Interface: iface})
	default:
		c.JSON(http.StatusOK, ConnectResponse{Connected: false, Interface: iface, Error: err.Error()})
	}
}

// Stats returns the supervisor's current connection summary.
func (api *API) Stats(c *gin.Context) {
	stats, err := api.sup.CollectStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// profileError maps store errors to HTTP statuses.
func (api *API) profileError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}
