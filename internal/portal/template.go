package portal

import (
	"html/template"
	"io"

	"github.com/sweeney/datatracker/internal/metric"
)

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>DataTracker Setup</title>
<style>
body { font-family: monospace; max-width: 480px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
label { display: block; margin-top: 1em; }
input, select, button { width: 100%; padding: 6px; margin-top: 4px; box-sizing: border-box; }
button { margin-top: 1.5em; }
.muted { color: #888; }
#msg { margin-top: 1em; }
</style>
</head>
<body>
<h1>DataTracker Setup</h1>
{{if .APName}}<p class="muted">Access point {{.APName}}</p>{{end}}

<label>Network
<select id="ssid-list"><option value="">Scanning...</option></select>
</label>
<label>Or enter SSID
<input id="ssid" type="text" autocomplete="off">
</label>
<label>Password
<input id="password" type="password">
</label>
<label>Display
<select id="module">
{{range .Modules}}<option value="{{.}}">{{.}}</option>
{{end}}</select>
</label>
<button id="save">Save and restart</button>
<p id="msg"></p>

<script>
(function() {
  var list = document.getElementById("ssid-list");
  var ssid = document.getElementById("ssid");
  var msg = document.getElementById("msg");

  function refresh() {
    fetch("/scan").then(function(r) { return r.json(); }).then(function(nets) {
      var current = list.value;
      list.innerHTML = "";
      if (nets.length === 0) {
        list.add(new Option("Scanning...", ""));
        return;
      }
      nets.forEach(function(n) {
        list.add(new Option(n.ssid + " (" + n.rssi + " dBm)", n.ssid));
      });
      list.value = current;
    }).catch(function() {});
  }

  list.addEventListener("change", function() { ssid.value = list.value; });

  document.getElementById("save").addEventListener("click", function() {
    var body = JSON.stringify({
      ssid: ssid.value,
      password: document.getElementById("password").value,
      module: document.getElementById("module").value
    });
    fetch("/save", { method: "POST", body: body }).then(function(r) {
      msg.textContent = r.ok ? "Saved. Restarting..." : "Save failed";
    });
  });

  refresh();
  setInterval(refresh, 5000);
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, apName string) {
	data := struct {
		APName  string
		Modules []string
	}{
		APName:  apName,
		Modules: metric.IDs(),
	}
	indexTmpl.Execute(w, data)
}
