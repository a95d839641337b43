package srv

import (
	"context"
	"fmt"
	"github.com/jypelle/epdframe/internal/srv/config"
	"github.com/jypelle/epdframe/internal/srv/device"
	"github.com/jypelle/epdframe/internal/srv/navigation"
	"github.com/jypelle/epdframe/internal/srv/remote"
	"github.com/jypelle/epdframe/internal/srv/render"
	"github.com/jypelle/epdframe/internal/version"
	"github.com/sirupsen/logrus"
	"os"
	"syscall"
)

type ServerApp struct {
	*config.ServerConfig

	navigation    *navigation.State
	displayWorker *DisplayWorker
	buttonWorker  *ButtonWorker
	apiDevice     *device.Api
}

func NewServerApp(configDir string, debugMode bool, simulationMode bool) (*ServerApp, error) {
	logrus.Debugf("Creation of epdframe server %s ...", version.AppVersion.String())

	serverConfig, err := config.NewServerConfig(configDir, debugMode, simulationMode)
	if err != nil {
		return nil, err
	}
	app := &ServerApp{ServerConfig: serverConfig}

	client := remote.NewClient(app.ServerUrl, app.HttpTimeout)
	metaInfoCache := remote.NewMetaInfoCache(client)

	app.navigation = navigation.NewState(metaInfoCache, nil)
	app.navigation.Restore(app.ServerState.Navigation())
	app.navigation.SetStore(app.ServerState)

	app.displayWorker = NewDisplayWorker(
		app.openPanel,
		app.navigation,
		remote.NewImageFetcher(client),
		render.NewDecision(app.UpdateInterval, app.AppSwitchInterval),
		app.DisplayParam.Rotation,
	)
	if app.ShowSplash {
		app.displayWorker.SetSplash([]string{
			"epdframe " + version.AppVersion.String(),
			app.ServerUrl,
		})
	}

	input, err := newInputSource(app.ButtonsParam)
	if err != nil {
		return nil, err
	}
	app.buttonWorker = NewButtonWorker(input, app.navigation)

	if app.ApiParam.Enabled {
		app.apiDevice = device.NewApi(app.ApiParam, app.GetCompleteKeyFilename(), app.GetCompleteCertFilename(), app.navigation)
		app.buttonWorker.SetApiEvents(app.apiDevice.EventChannel())
	}

	logrus.Debugln("Server created")
	return app, nil
}

func (s *ServerApp) openPanel() (device.Panel, error) {
	return device.NewPanel(s.DisplayParam, s.GetCompleteSimulationFrameFilename(), s.SimulationMode)
}

func newInputSource(param config.ButtonsParam) (device.InputSource, error) {
	switch param.Driver {
	case config.GPIO_BUTTONS_DRIVER:
		return device.NewButtons(param)
	case config.EVDEV_BUTTONS_DRIVER:
		return device.NewEvdevButtons(param), nil
	case config.NO_BUTTONS_DRIVER:
		return device.NewNoButtons(), nil
	default:
		return nil, fmt.Errorf("unknown buttons driver %q", param.Driver)
	}
}

// Run blocks until a termination signal or a worker failure and returns the
// process exit status.
func (s *ServerApp) Run() int {
	logrus.Printf("Starting epdframe server ...")

	shutdown := NewShutdownSignal(context.Background())
	stopNotify := shutdown.NotifyOn(os.Interrupt, syscall.SIGTERM)
	defer stopNotify()

	workers := []Worker{s.displayWorker, s.buttonWorker}
	if s.apiDevice != nil {
		workers = append(workers, s.apiDevice)
	}
	exitCode := NewSupervisor(workers...).Run(shutdown)

	// Flush navigation backup
	s.ServerState.FlushSave()

	logrus.Printf("Server stopped with exit code %d", exitCode)
	return exitCode
}
