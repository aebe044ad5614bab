package layout

import (
	"path/filepath"
	"strings"
)

const (
	// DependenciesFolder is the provisioning root under the resources directory.
	DependenciesFolder = "dependencies"
	// ExecutableFolder holds the backend artifact and its properties template.
	ExecutableFolder = "executable"
	// RuntimeAlias is the stable name of the extracted runtime directory.
	RuntimeAlias = "jvm"
	// BackendArtifactName is the backend jar launched on the runtime.
	BackendArtifactName = "class-recorder-pc.jar"
	// PropertiesTemplateName is the template rendered on every launch.
	PropertiesTemplateName = "application.properties.template"

	baseRuntimeBinary   = "java"
	baseMediaToolBinary = "ffmpeg"

	propertiesName = "application.properties"
	recordName     = "previous_data.json"
	pidName        = "backend.pid"
	tempFolder     = "temp"
	outputFolder   = "outputffmpeg"
)

// Layout resolves the on-disk locations produced by provisioning.
type Layout struct {
	// ResourcesDir is the base directory holding dependencies/ and executable/.
	ResourcesDir string
	// GOOS decides executable extensions.
	GOOS string
}

// New returns a Layout rooted at resourcesDir for the given operating system.
func New(resourcesDir, goos string) Layout {
	return Layout{
		ResourcesDir: filepath.Clean(resourcesDir),
		GOOS:         goos,
	}
}

// DependenciesDir is the provisioning root.
func (l Layout) DependenciesDir() string {
	return filepath.Join(l.ResourcesDir, DependenciesFolder)
}

// ExecutableDir holds the backend artifact and template.
func (l Layout) ExecutableDir() string {
	return filepath.Join(l.ResourcesDir, ExecutableFolder)
}

// RuntimeDir is the aliased runtime directory.
func (l Layout) RuntimeDir() string {
	return filepath.Join(l.DependenciesDir(), RuntimeAlias)
}

// RuntimeBinary is the runtime executable used to spawn the backend.
func (l Layout) RuntimeBinary() string {
	return filepath.Join(l.RuntimeDir(), "bin", baseRuntimeBinary+ExecutableExtension(l.GOOS))
}

// MediaTool is the ffmpeg binary unpacked into the provisioning root.
func (l Layout) MediaTool() string {
	return filepath.Join(l.DependenciesDir(), baseMediaToolBinary+ExecutableExtension(l.GOOS))
}

// BackendArtifact is the backend jar.
func (l Layout) BackendArtifact() string {
	return filepath.Join(l.ExecutableDir(), BackendArtifactName)
}

// PropertiesTemplate is the template rendered into AppData.PropertiesFile.
func (l Layout) PropertiesTemplate() string {
	return filepath.Join(l.ExecutableDir(), PropertiesTemplateName)
}

// AppData resolves files under the per-user application data directory.
type AppData struct {
	// Dir is the application data directory; it is the backend working directory.
	Dir string
}

// PropertiesFile is the rendered configuration consumed by the backend.
func (a AppData) PropertiesFile() string {
	return filepath.Join(a.Dir, propertiesName)
}

// RecordFile stores the last saved configuration record.
func (a AppData) RecordFile() string {
	return filepath.Join(a.Dir, recordName)
}

// PIDFile records the PID of the running backend.
func (a AppData) PIDFile() string {
	return filepath.Join(a.Dir, pidName)
}

// TempDir is the backend scratch directory.
func (a AppData) TempDir() string {
	return filepath.Join(a.Dir, tempFolder)
}

// OutputDir receives media tool output.
func (a AppData) OutputDir() string {
	return filepath.Join(a.Dir, outputFolder)
}

// ExecutableExtension returns ".exe" on Windows and "" elsewhere.
func ExecutableExtension(goos string) string {
	if strings.Contains(strings.ToLower(goos), "windows") {
		return ".exe"
	}

	return ""
}
