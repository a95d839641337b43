package config

import (
	"fmt"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
)

const paramFilename = "param.yaml"
const stateFilename = "state.yaml"
const simulationFrameFilename = "last_frame.png"

type ServerConfig struct {
	ConfigDir      string
	DebugMode      bool
	SimulationMode bool

	*ServerParam
	*ServerState
}

func NewServerConfig(configDir string, debugMode bool, simulationMode bool) (*ServerConfig, error) {
	serverConfig := &ServerConfig{
		ConfigDir:      configDir,
		DebugMode:      debugMode,
		SimulationMode: simulationMode,
	}

	// Check Configuration folder
	_, err := os.Stat(configDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("unable to access config folder %s: %w", configDir, err)
		}
		logrus.Printf("Creation of config folder: %s", configDir)
		if err = os.MkdirAll(configDir, 0770); err != nil {
			return nil, fmt.Errorf("unable to create config folder: %w", err)
		}
	}

	// Open param file
	serverConfig.ServerParam = &ServerParam{}
	rawConfig, err := os.ReadFile(serverConfig.GetCompleteParamFilename())
	if err == nil {
		// Interpret param file over the defaults
		if err = yaml.Unmarshal(ParamDefaultFile, serverConfig.ServerParam); err != nil {
			return nil, fmt.Errorf("unable to interpret default param file: %w", err)
		}
		if err = yaml.Unmarshal(rawConfig, serverConfig.ServerParam); err != nil {
			return nil, fmt.Errorf("unable to interpret param file: %w", err)
		}
	} else {
		// Create default param file
		logrus.Infof("Create default param file")
		if err = yaml.Unmarshal(ParamDefaultFile, serverConfig.ServerParam); err != nil {
			return nil, fmt.Errorf("unable to interpret default param file: %w", err)
		}
		if err = os.WriteFile(serverConfig.GetCompleteParamFilename(), ParamDefaultFile, 0660); err != nil {
			return nil, fmt.Errorf("unable to save param file: %w", err)
		}
	}

	if simulationMode {
		serverConfig.DisplayParam.Driver = SIMULATION_DRIVER
		if serverConfig.ButtonsParam.Driver == GPIO_BUTTONS_DRIVER {
			serverConfig.ButtonsParam.Driver = NO_BUTTONS_DRIVER
		}
	}

	if err = serverConfig.ServerParam.Validate(); err != nil {
		return nil, fmt.Errorf("invalid param file %s: %w", serverConfig.GetCompleteParamFilename(), err)
	}

	// Open state file
	serverConfig.ServerState, err = NewServerState(serverConfig.GetCompleteStateFilename())
	if err != nil {
		return nil, err
	}

	return serverConfig, nil
}

func (sc *ServerConfig) GetCompleteParamFilename() string {
	return filepath.Join(sc.ConfigDir, paramFilename)
}

func (sc *ServerConfig) GetCompleteStateFilename() string {
	return filepath.Join(sc.ConfigDir, stateFilename)
}

func (sc *ServerConfig) GetCompleteSimulationFrameFilename() string {
	return filepath.Join(sc.ConfigDir, simulationFrameFilename)
}

func (sc *ServerConfig) GetCompleteLogFilename() string {
	if filepath.IsAbs(sc.LogFile) {
		return sc.LogFile
	}
	return filepath.Join(sc.ConfigDir, sc.LogFile)
}

func (sc *ServerConfig) GetCompleteKeyFilename() string {
	return filepath.Join(sc.ConfigDir, "key.pem")
}

func (sc *ServerConfig) GetCompleteCertFilename() string {
	return filepath.Join(sc.ConfigDir, "cert.pem")
}

// OpenLogFile opens the log file in append mode, creating its folder if needed.
func (sc *ServerConfig) OpenLogFile() (*os.File, error) {
	filename := sc.GetCompleteLogFilename()
	if err := os.MkdirAll(filepath.Dir(filename), 0770); err != nil {
		return nil, fmt.Errorf("unable to create log folder: %w", err)
	}
	return os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0660)
}
