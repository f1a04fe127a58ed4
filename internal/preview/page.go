package preview

const indexPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>tplstr preview</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
#state { font-size: 0.8rem; color: #888; }
#validation { color: #b00020; min-height: 1.2rem; }
#output { border: 1px solid #ddd; padding: 1rem; white-space: pre-wrap; font-family: monospace; }
#output.html { white-space: normal; font-family: inherit; }
</style>
</head>
<body>
<div id="state">connecting</div>
<div id="validation"></div>
<div id="output"></div>
<script>
(function () {
  var out = document.getElementById("output");
  var state = document.getElementById("state");
  var validation = document.getElementById("validation");
  function connect() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      state.textContent = msg.state + " #" + msg.revision + " (" + msg.variables.join(", ") + ")";
      validation.textContent = msg.validation || "";
      if (msg.html !== undefined) {
        out.className = "html";
        out.innerHTML = msg.html;
      } else {
        out.className = "";
        out.textContent = msg.rendered;
      }
    };
    ws.onclose = function () {
      state.textContent = "disconnected, retrying";
      setTimeout(connect, 1000);
    };
  }
  connect();
})();
</script>
</body>
</html>
`
