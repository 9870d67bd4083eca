package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/oven-controller/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"heater": status.HeaterLabel,
	"seconds": func(d time.Duration) string {
		return fmt.Sprintf("%.0fs", d.Truncate(time.Second).Seconds())
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Oven Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
button { font-family: monospace; margin-right: 6px; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Oven Controller<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Cook State</h2>
<table>
<tr><th>Mode</th><td id="mode">{{.Mode}}</td></tr>
<tr><th>Doneness</th><td id="doneness">{{.Doneness}}</td></tr>
<tr><th>State</th><td id="state">{{.Status}}</td></tr>
<tr><th>Heater</th><td id="heater" class="{{if .Heater}}on{{else}}off{{end}}">{{heater .Heater}}</td></tr>
<tr><th>Temperature</th><td id="temperature">{{if .HaveTemperature}}{{.TemperatureC}}&deg;C{{else}}-{{end}}</td></tr>
<tr><th>Target</th><td id="target">{{if .Run}}{{.Run.TargetC}}&deg;C{{else}}-{{end}}</td></tr>
<tr><th>Remaining</th><td id="remaining">{{if .Run}}{{seconds .Remaining}}{{else}}-{{end}}</td></tr>
</table>

<p>
<button onclick="press('mode')">Mode</button>
<button onclick="press('doneness')">Doneness</button>
<button onclick="press('start')">Start</button>
</p>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Cycles</th><td id="cycles">{{.Counts.Cycles}}</td></tr>
<tr><th>Heater ON</th><td>{{.Counts.HeaterOn}}</td></tr>
<tr><th>Heater OFF</th><td>{{.Counts.HeaterOff}}</td></tr>
<tr><th>Selections</th><td>{{.Counts.Selections}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Sensor</th><td>{{.Config.Sensor}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/api/v1/cycles">Cycles</a></p>
<script>
function press(button) {
  fetch("/api/v1/buttons/" + button, { method: "POST" });
}
(function() {
  var dot = document.getElementById("live-dot");
  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }
  function text(id, v) { document.getElementById(id).textContent = v; }

  function connect() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() { setDot("err", "offline"); setTimeout(connect, 5000); };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).status;
        text("mode", s.mode);
        text("doneness", s.doneness);
        text("state", s.state);
        text("heater", s.heater);
        document.getElementById("heater").className = s.heater === "ON" ? "on" : "off";
        text("temperature", s.temperature_c === null ? "-" : s.temperature_c + "°C");
        text("target", s.run ? s.run.target_c + "°C" : "-");
        text("remaining", s.run ? Math.round(s.run.remaining_ms / 1000) + "s" : "-");
        text("cycles", s.event_counts.cycles);
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() and Remaining() methods but the template needs fields.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Remaining time.Duration
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		Remaining: snap.Remaining(),
	}
	return indexTmpl.Execute(w, data)
}
