package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jypelle/epdframe/apimodel"
	"github.com/jypelle/epdframe/internal/srv/config"
	"github.com/jypelle/epdframe/internal/srv/event"
	"github.com/jypelle/epdframe/internal/tool"
	"github.com/sirupsen/logrus"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"
)

const apiEventTimeout = 5 * time.Second

type NavigationReader interface {
	Snapshot() apimodel.Navigation
}

// Api is the optional HTTPS control endpoint. Navigation changes are handed
// to the button worker through EventChannel.
type Api struct {
	eventChannel chan event.ApiEvent
	eventTimeout time.Duration
	navigation   NavigationReader

	router    *mux.Router
	apiRouter *mux.Router
	server    *http.Server

	param        config.ApiParam
	keyFilename  string
	certFilename string
	log          *logrus.Entry
}

func NewApi(param config.ApiParam, keyFilename string, certFilename string, navigation NavigationReader) *Api {
	api := Api{
		eventChannel: make(chan event.ApiEvent),
		eventTimeout: apiEventTimeout,
		navigation:   navigation,
		param:        param,
		keyFilename:  keyFilename,
		certFilename: certFilename,
		log:          logrus.WithField("source", "api"),
	}

	api.router = mux.NewRouter().StrictSlash(false)

	api.apiRouter = api.router.PathPrefix("/api").Subrouter()
	api.apiRouter.NotFoundHandler = http.HandlerFunc(ErrorNotFoundAction)
	api.apiRouter.MethodNotAllowedHandler = http.HandlerFunc(ErrorMethodNotAllowedAction)

	// Auth middleware
	api.apiRouter.Use(
		func(handler http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer func() {
					if rec := recover(); rec != nil {
						api.log.Warningf("recovered from panic : [%v] - stack trace : \n [%s]", rec, debug.Stack())
						GlobalErrorAction(w, fmt.Sprintf("%v", rec), http.StatusInternalServerError)
					}
				}()

				if r.Header.Get("x-api-key") != api.param.ApiKey {
					ErrorStatusAction(w, r, http.StatusForbidden)
					return
				}

				api.log.Debugf("PATH: %s %s", r.Host, r.URL.Path)

				handler.ServeHTTP(w, r)
			})
		})

	api.apiRouter.HandleFunc("/is_alive",
		func(w http.ResponseWriter, r *http.Request) {
			ErrorStatusAction(w, r, http.StatusOK)
		}).Methods("GET")
	api.apiRouter.HandleFunc("/navigation",
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(api.navigation.Snapshot()); err != nil {
				api.log.Errorf("Unable to encode navigation: %v", err)
			}
		}).Methods("GET")
	api.apiRouter.HandleFunc("/navigation/next_app", api.eventAction(event.ApiEventNextAppData{})).Methods("POST")
	api.apiRouter.HandleFunc("/navigation/next_screen", api.eventAction(event.ApiEventNextScreenData{})).Methods("POST")
	api.apiRouter.HandleFunc("/navigation/refresh", api.eventAction(event.ApiEventRefreshData{})).Methods("POST")

	// Tell the browser that it's OK for JS to communicate with the server
	headersOk := handlers.AllowedHeaders([]string{"Authorization", "x-api-key"})
	originsOk := handlers.AllowedOrigins([]string{"*"})
	methodsOk := handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"})

	api.server = &http.Server{
		Addr:         ":" + strconv.FormatInt(param.SslPort, 10),
		Handler:      handlers.CompressHandler(handlers.CORS(originsOk, headersOk, methodsOk)(api.router)),
		ReadTimeout:  time.Second * 240,
		WriteTimeout: time.Second * 240,
		IdleTimeout:  time.Second * 240,
	}

	return &api
}

// eventAction forwards data to the button worker and reports its result.
func (d *Api) eventAction(data interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := make(chan error, 1)
		timeout := time.NewTimer(d.eventTimeout)
		defer timeout.Stop()

		select {
		case d.eventChannel <- event.ApiEvent{Result: result, Data: data}:
		case <-timeout.C:
			apimodel.NavigationUnavailableErrorMessage.SendError(w)
			return
		case <-r.Context().Done():
			return
		}

		select {
		case err := <-result:
			if err == nil {
				ErrorStatusAction(w, r, http.StatusOK)
			} else {
				GlobalErrorAction(w, err.Error(), http.StatusServiceUnavailable)
			}
		case <-timeout.C:
			apimodel.NavigationUnavailableErrorMessage.SendError(w)
		case <-r.Context().Done():
		}
	}
}

func (d *Api) Name() string {
	return "api"
}

func (d *Api) Handler() http.Handler {
	return d.server.Handler
}

func (d *Api) EventChannel() <-chan event.ApiEvent {
	return d.eventChannel
}

// Run serves HTTPS until ctx is done, generating a self-signed certificate
// on first use.
func (d *Api) Run(ctx context.Context) error {
	d.log.Infof("Start api on %s", d.server.Addr)

	if err := d.ensureCertificate(); err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- d.server.ListenAndServeTLS(d.certFilename, d.keyFilename)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	d.log.Infof("Stop api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}

func (d *Api) ensureCertificate() error {
	existServerCert, err := tool.IsFileExists(d.certFilename)
	if err != nil {
		return fmt.Errorf("unable to access %s: %w", d.certFilename, err)
	}
	existServerKey, err := tool.IsFileExists(d.keyFilename)
	if err != nil {
		return fmt.Errorf("unable to access %s: %w", d.keyFilename, err)
	}
	if existServerCert && existServerKey {
		return nil
	}

	d.log.Info("Missing cert and key files, trying to generate them...")
	err = tool.GenerateTlsCertificate("Epdframe Server", d.keyFilename, d.certFilename, []string{})
	if err != nil {
		return fmt.Errorf("unable to generate cert and key files: %w", err)
	}
	d.log.Info("Self-signed cert and key files generated")
	return nil
}

func ErrorNotFoundAction(w http.ResponseWriter, r *http.Request) {
	ErrorStatusAction(w, r, http.StatusNotFound)
}

func ErrorMethodNotAllowedAction(w http.ResponseWriter, r *http.Request) {
	ErrorStatusAction(w, r, http.StatusMethodNotAllowed)
}

func ErrorStatusAction(w http.ResponseWriter, r *http.Request, status int) {
	GlobalErrorAction(w, "", status)
}

func GlobalErrorAction(w http.ResponseWriter, message string, status int) {
	apimodel.ErrorMessage{ErrStatusCode: status, ErrMessage: message}.SendError(w)
}
