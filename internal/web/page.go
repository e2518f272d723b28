package web

const dashboardTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Air Quality</title>
<script src="https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.min.js"></script>
<script src="https://cdn.jsdelivr.net/npm/chartjs-adapter-date-fns@3.0.0/dist/chartjs-adapter-date-fns.bundle.min.js"></script>
<style>
body { font-family: system-ui, sans-serif; margin: 0; background: #f4f5f7; color: #222; }
header { padding: 12px 20px; background: #263238; color: #fff; display: flex; justify-content: space-between; }
#status.offline { color: #ff8a80; }
main { display: grid; grid-template-columns: repeat(auto-fill, minmax(460px, 1fr)); gap: 16px; padding: 16px; }
.card { background: #fff; border-radius: 6px; padding: 12px; box-shadow: 0 1px 3px rgba(0,0,0,.12); }
.card h2 { margin: 0 0 8px; font-size: 15px; display: flex; justify-content: space-between; }
.card h2 a { font-size: 12px; color: #607d8b; margin-left: 8px; }
</style>
</head>
<body>
<header><span>Air Quality</span><span id="status">connecting</span></header>
<main>
{{range .}}
<section class="card">
  <h2>{{.Title}}<span><a href="/charts/{{.ID}}">snapshot</a><a href="/charts/{{.ID}}.png">png</a></span></h2>
  <canvas id="{{.Mount}}"></canvas>
</section>
{{end}}
</main>
<script>
const charts = {};

function construct(msg) {
  if (charts[msg.mount]) {
    charts[msg.mount].destroy();
  }
  const el = document.getElementById(msg.mount);
  if (!el) return;
  charts[msg.mount] = new Chart(el, msg.config);
}

function update(msg) {
  const chart = charts[msg.mount];
  if (!chart) return;
  msg.datasets.forEach((ds, i) => {
    if (chart.data.datasets[i]) chart.data.datasets[i].data = ds.data;
  });
  chart.update();
}

function destroy(msg) {
  const chart = charts[msg.mount];
  if (!chart) return;
  chart.destroy();
  delete charts[msg.mount];
}

function connect() {
  const status = document.getElementById('status');
  const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
  const ws = new WebSocket(proto + location.host + '/ws');
  ws.onopen = () => { status.textContent = 'live'; status.className = ''; };
  ws.onclose = () => {
    status.textContent = 'offline';
    status.className = 'offline';
    setTimeout(connect, 2000);
  };
  ws.onmessage = (ev) => {
    const msg = JSON.parse(ev.data);
    switch (msg.op) {
    case 'construct': construct(msg); break;
    case 'update': update(msg); break;
    case 'destroy': destroy(msg); break;
    }
  };
}

connect();
</script>
</body>
</html>
`
