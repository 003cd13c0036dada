package assistant

import (
	"context"
	"strings"

	"github.com/lewisedginton/ron/pkg/logger"
)

var connectivityWords = []string{"internet", "conexión", "red", "wifi"}

// handleProblemReport diagnoses the machine, then runs the repairs the
// findings and the complaint call for.
func (d *Dispatcher) handleProblemReport(ctx context.Context, u *utterance) Reply {
	sys := d.caps.System
	diagnosis := sys.Diagnose(ctx)
	services := sys.CheckServices(ctx)

	var b strings.Builder
	b.WriteString("He diagnosticado tu sistema automáticamente. ")
	b.WriteString(diagnosis)
	b.WriteString(" ")
	b.WriteString(services)

	var repairs []string
	if hasFault(diagnosis) || hasFault(services) {
		b.WriteString(" He reparado los servicios problemáticos: ")
		b.WriteString(sys.RestartServices(ctx))
		repairs = append(repairs, "restart_services")
	}
	if strings.Contains(diagnosis, "CPU:") && containsAny("lento", "se traba")(u.Text) {
		b.WriteString(" También limpié archivos temporales para mejorar el rendimiento: ")
		b.WriteString(sys.CleanTemp(ctx))
		repairs = append(repairs, "clean_temp")
	}
	if containsAny(connectivityWords...)(u.Text) {
		b.WriteString(" Limpié la caché DNS para resolver problemas de conexión: ")
		b.WriteString(sys.FlushDNS(ctx))
		repairs = append(repairs, "flush_dns")
	}
	if len(repairs) > 0 {
		b.WriteString(" Intenta usar tu computadora ahora para ver si el problema se resolvió.")
	}

	u.Log.Info("Problem report handled",
		logger.StringField("repairs", strings.Join(repairs, ",")))
	return say(b.String())
}

func hasFault(report string) bool {
	return strings.Contains(report, "PROBLEMA") || strings.Contains(report, "ERROR")
}
