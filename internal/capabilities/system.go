package capabilities

import (
	"context"
	"fmt"
	"strings"

	"github.com/lewisedginton/ron/pkg/logger"
)

// System runs the OS diagnostics, repairs and power actions of a profile.
// Every method returns a reply fit to be spoken back to the user.
type System struct {
	profile *Profile
	runner  Runner
	log     logger.Logger
}

// NewSystem creates a System for the given profile.
func NewSystem(profile *Profile, runner Runner, log logger.Logger) *System {
	if profile == nil {
		panic("profile cannot be nil")
	}
	if runner == nil {
		panic("runner cannot be nil")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &System{profile: profile, runner: runner, log: log}
}

// Profile returns the active platform profile.
func (s *System) Profile() *Profile { return s.profile }

func (s *System) run(ctx context.Context, cmd Command) (string, error) {
	if len(cmd) == 0 {
		return "", fmt.Errorf("empty command")
	}
	return s.runner.Run(ctx, cmd[0], cmd[1:]...)
}

func (s *System) unsupported() string {
	return fmt.Sprintf("Esta función no está disponible en %s.", s.profile.Name)
}

// Diagnose reports CPU load and memory usage.
func (s *System) Diagnose(ctx context.Context) string {
	s.log.Info("Running system diagnostics", logger.StringField("platform", s.profile.Name))

	cpu := "N/A"
	if s.profile.CPU != nil {
		if out, err := s.run(ctx, s.profile.CPU); err == nil || out != "" {
			if load, ok := s.profile.ParseCPU(out); ok {
				cpu = load
			}
		}
	}

	memory := "Memoria: No se pudo obtener información"
	if s.profile.Memory != nil {
		out, _ := s.run(ctx, s.profile.Memory)
		if total, free, ok := s.profile.ParseMemory(out); ok {
			totalMB, freeMB := total/1024, free/1024
			used := float64(total-free) / float64(total) * 100
			memory = fmt.Sprintf("Memoria: %.1f%% en uso (%dMB libres de %dMB)", used, freeMB, totalMB)
		}
	}

	return fmt.Sprintf("CPU: %s%% de uso. %s. Diagnóstico completado.", cpu, memory)
}

// CheckServices reports the state of the platform's critical services.
// Stopped services are marked PROBLEMA and services that cannot be queried
// are marked ERROR.
func (s *System) CheckServices(ctx context.Context) string {
	if len(s.profile.Services) == 0 {
		return s.unsupported()
	}

	results := make([]string, 0, len(s.profile.Services))
	var problems []string
	for _, svc := range s.profile.Services {
		out, err := s.run(ctx, s.profile.ServiceQuery(svc))
		switch {
		case s.profile.ServiceRunning(out, err):
			results = append(results, svc+": OK")
		case err != nil && ExitCode(err) < 0:
			results = append(results, svc+": ERROR")
			problems = append(problems, svc)
		default:
			results = append(results, svc+": PROBLEMA")
			problems = append(problems, svc)
		}
	}

	s.log.Info("Service check completed", logger.IntField("problems", len(problems)))
	status := "Servicios verificados: " + strings.Join(results, ", ")
	if len(problems) > 0 {
		status += ". Servicios con problemas detectados: " + strings.Join(problems, ", ")
	}
	return status
}

// RestartServices stops and starts every restartable service that is not running.
func (s *System) RestartServices(ctx context.Context) string {
	if len(s.profile.RestartableServices) == 0 {
		return s.unsupported()
	}

	var restarted []string
	for _, svc := range s.profile.RestartableServices {
		out, err := s.run(ctx, s.profile.ServiceQuery(svc))
		if s.profile.ServiceRunning(out, err) {
			continue
		}
		_, _ = s.run(ctx, s.profile.ServiceStop(svc))
		if _, err := s.run(ctx, s.profile.ServiceStart(svc)); err != nil {
			s.log.Warn("Failed to restart service",
				logger.StringField("service", svc),
				logger.ErrorField(err))
			continue
		}
		restarted = append(restarted, svc)
	}

	if len(restarted) == 0 {
		return "No fue necesario reiniciar servicios o no se pudieron reiniciar"
	}
	return "Servicios reiniciados: " + strings.Join(restarted, ", ")
}

// runAll runs every command, returning the first failure.
func (s *System) runAll(ctx context.Context, cmds []Command) error {
	var first error
	for _, cmd := range cmds {
		if _, err := s.run(ctx, cmd); err != nil {
			s.log.Warn("Command failed",
				logger.StringField("command", strings.Join(cmd, " ")),
				logger.ErrorField(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// CleanTemp removes temporary files. Individual failures are expected for
// files in use and do not fail the cleanup.
func (s *System) CleanTemp(ctx context.Context) string {
	if len(s.profile.TempClean) == 0 {
		return s.unsupported()
	}
	_ = s.runAll(ctx, s.profile.TempClean)
	return "Archivos temporales limpiados. Se liberó espacio en disco."
}

// FlushDNS clears the resolver cache.
func (s *System) FlushDNS(ctx context.Context) string {
	if len(s.profile.DNSFlush) == 0 {
		return s.unsupported()
	}
	if err := s.runAll(ctx, s.profile.DNSFlush); err != nil {
		return fmt.Sprintf("Error al limpiar DNS: %v", err)
	}
	return "Caché DNS limpiada. Problemas de conexión resueltos."
}

// NetworkReset resets the network stack.
func (s *System) NetworkReset(ctx context.Context) string {
	if len(s.profile.NetworkReset) == 0 {
		return s.unsupported()
	}
	if err := s.runAll(ctx, s.profile.NetworkReset); err != nil {
		return fmt.Sprintf("Error al reiniciar red: %v", err)
	}
	return "Adaptadores de red reiniciados. Reinicia la computadora para aplicar cambios."
}

// DiskSpace reports free and total space per volume.
func (s *System) DiskSpace(ctx context.Context) string {
	if s.profile.Disk == nil {
		return s.unsupported()
	}
	out, err := s.run(ctx, s.profile.Disk)
	if err != nil && out == "" {
		return fmt.Sprintf("Error al verificar espacio en disco: %v", err)
	}

	const gb = 1 << 30
	disks := s.profile.ParseDisk(out)
	info := make([]string, 0, len(disks))
	for _, d := range disks {
		used := float64(d.SizeBytes-d.FreeBytes) / float64(d.SizeBytes) * 100
		info = append(info, fmt.Sprintf("%s %dGB libres de %dGB (%.1f%% usado)",
			d.Caption, d.FreeBytes/gb, d.SizeBytes/gb, used))
	}
	return "Espacio en disco: " + strings.Join(info, ", ")
}

// SystemFileCheck runs the platform integrity scanner.
func (s *System) SystemFileCheck(ctx context.Context) string {
	if s.profile.SystemFileCheck == nil {
		return s.unsupported()
	}
	out, _ := s.run(ctx, s.profile.SystemFileCheck)
	lower := strings.ToLower(out)
	switch {
	case strings.Contains(lower, "no encontró ninguna infracción de integridad"),
		strings.Contains(lower, "did not find any integrity violations"):
		return "Verificación de archivos del sistema completada. No se encontraron problemas."
	case strings.Contains(lower, "reparó correctamente"),
		strings.Contains(lower, "successfully repaired"):
		return "Verificación completada. Se repararon algunos archivos del sistema."
	default:
		return "Verificación de archivos del sistema ejecutada. Revisa los logs para más detalles."
	}
}

func (s *System) power(ctx context.Context, cmd Command, ok, failure string) string {
	if cmd == nil {
		return s.unsupported()
	}
	s.log.Warn("Running power command", logger.StringField("command", strings.Join(cmd, " ")))
	if _, err := s.run(ctx, cmd); err != nil {
		return fmt.Sprintf("%s: %v", failure, err)
	}
	return ok
}

// Shutdown powers the machine off.
func (s *System) Shutdown(ctx context.Context) string {
	return s.power(ctx, s.profile.Shutdown, "Apagando la computadora...", "Error al apagar")
}

// Restart reboots the machine.
func (s *System) Restart(ctx context.Context) string {
	return s.power(ctx, s.profile.Restart, "Reiniciando la computadora...", "Error al reiniciar")
}

// Suspend puts the machine to sleep.
func (s *System) Suspend(ctx context.Context) string {
	return s.power(ctx, s.profile.Suspend, "Suspendiendo la computadora...", "Error al suspender")
}
