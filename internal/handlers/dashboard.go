package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Dashboard serves a live view of the gateway's metrics report.
func (h *Handler) Dashboard(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(dashboardHTML))
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Gateway Metrics</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: 'Segoe UI', system-ui, sans-serif;
            background: linear-gradient(135deg, #fef6f9 0%, #f0f4ff 50%, #e8f5f0 100%);
            min-height: 100vh;
            display: flex;
            flex-direction: column;
            align-items: center;
            padding: 2rem;
            color: #5a5a7a;
        }
        h1 {
            font-size: 2rem;
            margin-bottom: 0.5rem;
            background: linear-gradient(90deg, #b8a9c9, #f4b8c5);
            -webkit-background-clip: text;
            -webkit-text-fill-color: transparent;
            background-clip: text;
        }
        .subtitle { color: #9a9ab8; margin-bottom: 2rem; font-size: 0.9rem; }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(380px, 1fr));
            gap: 1.5rem;
            width: 100%;
            max-width: 1100px;
        }
        .card {
            background: rgba(255, 255, 255, 0.7);
            backdrop-filter: blur(10px);
            border-radius: 20px;
            border: 1px solid rgba(184, 169, 201, 0.3);
            padding: 1.5rem;
        }
        .card h2 { font-size: 1rem; margin-bottom: 1rem; color: #7a7a9a; }
    </style>
</head>
<body>
    <h1>API Gateway</h1>
    <div class="subtitle">admissions, status codes, and backend latency</div>
    <div class="grid">
        <div class="card"><h2>Plan decisions</h2><canvas id="plans"></canvas></div>
        <div class="card"><h2>Status codes</h2><canvas id="status"></canvas></div>
        <div class="card"><h2>Average latency (s)</h2><canvas id="latency"></canvas></div>
        <div class="card"><h2>Instance hits</h2><canvas id="instances"></canvas></div>
    </div>
    <script>
        const palette = ['#b8a9c9', '#f4b8c5', '#a9c9b8', '#c9b8a9', '#a9b8c9'];

        function barChart(id) {
            return new Chart(document.getElementById(id), {
                type: 'bar',
                data: { labels: [], datasets: [] },
                options: { responsive: true, animation: false, scales: { y: { beginAtZero: true } } }
            });
        }

        const plans = barChart('plans');
        const status = barChart('status');
        const latency = barChart('latency');
        const instances = barChart('instances');

        function setBars(chart, labels, datasets) {
            chart.data.labels = labels;
            chart.data.datasets = datasets.map((d, i) => ({
                label: d.label, data: d.data, backgroundColor: d.color || palette[i % palette.length]
            }));
            chart.update();
        }

        async function refresh() {
            try {
                const res = await fetch('/metrics');
                const m = await res.json();

                const planNames = Object.keys(m.plans).sort();
                setBars(plans, planNames, [
                    { label: 'allowed', data: planNames.map(p => m.plans[p].allowed), color: '#a9c9b8' },
                    { label: 'blocked', data: planNames.map(p => m.plans[p].blocked), color: '#f4b8c5' }
                ]);

                const codes = Object.keys(m.status).sort();
                setBars(status, codes, [{ label: 'count', data: codes.map(c => m.status[c]) }]);

                const svcs = Object.keys(m.latency).sort();
                setBars(latency, svcs, [{ label: 'avg seconds', data: svcs.map(s => m.latency[s]) }]);

                const labels = Object.keys(m.instances).sort();
                setBars(instances, labels, [{ label: 'requests', data: labels.map(l => m.instances[l]) }]);
            } catch (e) {
                console.error('metrics refresh failed', e);
            }
        }

        refresh();
        setInterval(refresh, 2000);
    </script>
</body>
</html>`
