package http

import (
	"bytes"
	"html/template"
	nethttp "net/http"

	"vantage-distress-ui/internal/demo"
	"vantage-distress-ui/internal/risk"
)

type dashboardData struct {
	Version    string
	DemoAssets []classifiedAsset
	Factors    []risk.Factor
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(dashboardHTML))

func dashboardHandler(version string) nethttp.HandlerFunc {
	data := dashboardData{
		Version:    version,
		DemoAssets: classifyAssets(demo.Assets(), "demo"),
		Factors:    risk.Factors(),
	}
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/" {
			writeJSON(w, nethttp.StatusNotFound, map[string]any{"error": "not found"})
			return
		}

		var buf bytes.Buffer
		if err := dashboardTemplate.Execute(&buf, data); err != nil {
			writeJSON(w, nethttp.StatusInternalServerError, map[string]any{"error": "failed to render dashboard"})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(nethttp.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

func faviconHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	w.WriteHeader(nethttp.StatusNoContent)
}

const dashboardHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Vantage Distress Dashboard</title>
  <style>
    :root {
      --brand: #1f2a44;
      --brand-2: #2f4b7c;
      --bg: #f7f7f7;
      --paper: #fff;
      --text: #333;
      --muted: #777;
      --line: #ddd;
      --critical: #a94442;
      --critical-bg: #f2dede;
      --high: #8a4b08;
      --high-bg: #fcf0d9;
      --medium: #31708f;
      --medium-bg: #d9edf7;
      --low: #3c763d;
      --low-bg: #dff0d8;
    }

    * { box-sizing: border-box; }

    body {
      margin: 0;
      background: var(--bg);
      color: var(--text);
      font-family: "Helvetica Neue", Helvetica, Arial, sans-serif;
      font-size: 14px;
    }

    header {
      background: linear-gradient(to right, var(--brand) 0, var(--brand-2) 100%);
      color: #fff;
      padding: 14px 20px;
      display: flex;
      align-items: center;
      justify-content: space-between;
    }

    header .brand { font-size: 22px; font-weight: 300; }
    header .brand strong { font-weight: 600; }
    header .note { font-size: 12px; opacity: 0.85; }

    main {
      display: grid;
      grid-template-columns: minmax(0, 3fr) minmax(0, 2fr);
      gap: 16px;
      padding: 16px 20px;
    }

    .panel {
      background: var(--paper);
      border: 1px solid var(--line);
      border-radius: 4px;
      padding: 12px 14px;
    }

    .panel h2 { font-size: 16px; margin: 0 0 10px; font-weight: 600; }
    .muted { color: var(--muted); }

    table { width: 100%; border-collapse: collapse; }
    th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid #eee; }
    th { background: #f0f0f0; font-weight: 600; }
    tbody tr { cursor: pointer; }
    tbody tr:hover, tbody tr.selected { background: #eef3f9; }

    .badge { display: inline-block; border-radius: 10px; padding: 1px 8px; font-size: 12px; font-weight: 600; }
    .badge.critical { color: var(--critical); background: var(--critical-bg); }
    .badge.high { color: var(--high); background: var(--high-bg); }
    .badge.medium { color: var(--medium); background: var(--medium-bg); }
    .badge.low { color: var(--low); background: var(--low-bg); }
    .badge.neutral { color: var(--muted); background: #eee; }

    .search { display: flex; gap: 8px; margin-bottom: 10px; }
    .search input { flex: 1; padding: 6px 8px; border: 1px solid var(--line); border-radius: 3px; }
    .search button { padding: 6px 12px; border: 1px solid var(--brand-2); background: var(--brand-2); color: #fff; border-radius: 3px; }

    .tree ul { list-style: none; margin: 0; padding-left: 18px; border-left: 1px dashed #ccc; }
    .tree li { margin: 4px 0; }
    .tree .kind { font-size: 11px; color: var(--muted); margin-left: 4px; }
    .tree .flag { font-size: 11px; color: var(--critical); margin-left: 4px; }

    .timeline { list-style: none; margin: 0; padding: 0; }
    .timeline li { padding: 6px 0 6px 14px; border-left: 2px solid var(--brand-2); margin-left: 4px; }
    .timeline .date { font-weight: 600; margin-right: 6px; }

    .factor { display: flex; align-items: center; gap: 8px; margin: 4px 0; }
    .factor .name { width: 90px; }
    .factor .bar { flex: 1; height: 8px; background: #eee; border-radius: 4px; overflow: hidden; }
    .factor .fill { height: 100%; background: var(--brand-2); }
    .banner { background: #ffb400; color: #222; padding: 6px 10px; border-radius: 3px; margin-bottom: 10px; display: none; }
  </style>
</head>
<body>
  <header>
    <div class="brand"><strong>Vantage</strong> Distress</div>
    <div class="note" id="system-status">connecting...</div>
  </header>

  <main>
    <section class="panel">
      <h2>Distressed assets</h2>
      <div class="banner" id="demo-banner">API unreachable, showing demo protocol data.</div>
      <form class="search" id="search-form">
        <input id="search-q" type="search" placeholder="Search by address" />
        <button type="submit">Search</button>
      </form>
      <table>
        <thead>
          <tr><th>Address</th><th>Band</th><th>Risk</th><th>Floor area</th><th>Type</th><th>Owner</th></tr>
        </thead>
        <tbody id="assets-body"></tbody>
      </table>
    </section>

    <section class="panel" id="dossier">
      <h2>Dossier</h2>
      <p class="muted" id="dossier-empty">Select an asset to open its dossier.</p>
      <div id="dossier-body" hidden>
        <h3 id="dossier-title"></h3>
        <div id="dossier-risk"></div>
        <h4>Risk factors</h4>
        <div id="factors"></div>
        <h4>Ownership structure</h4>
        <div class="tree" id="structure"></div>
        <h4>Charges</h4>
        <div id="charges-summary" class="muted"></div>
        <ul class="timeline" id="charges-timeline"></ul>
        <h4>Comparable sales</h4>
        <div id="comps-summary" class="muted"></div>
        <ul class="timeline" id="comps-list"></ul>
      </div>
    </section>
  </main>

  <script>
    const DEMO_ASSETS = {{.DemoAssets}};
    const FACTORS = {{.Factors}};
    const VERSION = {{.Version}};

    const byId = (id) => document.getElementById(id);

    function esc(v) {
      return String(v == null ? "" : v)
        .replace(/&/g, "&amp;")
        .replace(/</g, "&lt;")
        .replace(/>/g, "&gt;")
        .replace(/"/g, "&quot;");
    }

    async function getJSON(url) {
      const r = await fetch(url);
      if (!r.ok) throw new Error(url + " -> " + r.status);
      return r.json();
    }

    function badge(risk) {
      const tier = risk && risk.tier ? risk.tier : "neutral";
      const score = risk && typeof risk.score === "number" ? " " + risk.score.toFixed(1) : "";
      return '<span class="badge ' + esc(tier) + '">' + esc(tier) + score + '</span>';
    }

    function renderAssets(items) {
      const rows = items.map(function (a, i) {
        return '<tr data-i="' + i + '">' +
          '<td>' + esc(a.address) + '</td>' +
          '<td>' + esc(a.asset_rating_band || "-") + '</td>' +
          '<td>' + badge(a.risk) + '</td>' +
          '<td>' + esc(a.floor_area || "-") + '</td>' +
          '<td>' + esc(a.property_type) + '</td>' +
          '<td>' + esc(a.company_name || "unknown") + '</td>' +
          '</tr>';
      });
      byId("assets-body").innerHTML = rows.join("") || '<tr><td colspan="6" class="muted">No assets found.</td></tr>';
      Array.from(byId("assets-body").querySelectorAll("tr[data-i]")).forEach(function (tr) {
        tr.addEventListener("click", function () {
          Array.from(tr.parentNode.children).forEach(function (r) { r.classList.remove("selected"); });
          tr.classList.add("selected");
          openDossier(items[Number(tr.dataset.i)]);
        });
      });
      if (items.length) {
        byId("assets-body").querySelector("tr[data-i]").classList.add("selected");
        openDossier(items[0]);
      }
    }

    function useDemo() {
      byId("demo-banner").style.display = "block";
      renderAssets(DEMO_ASSETS);
    }

    async function loadStatus() {
      try {
        const s = await getJSON("/api/status");
        byId("system-status").textContent = s.status + " (" + s.version + ")";
      } catch (e) {
        byId("system-status").textContent = "offline (" + VERSION + ")";
      }
    }

    async function loadAssets() {
      try {
        const res = await getJSON("/api/distress-scan");
        byId("demo-banner").style.display = "none";
        renderAssets(res.data || []);
      } catch (e) {
        useDemo();
      }
    }

    async function search(q) {
      if (!q) return loadAssets();
      try {
        const res = await getJSON("/api/search?q=" + encodeURIComponent(q));
        byId("demo-banner").style.display = "none";
        renderAssets(res.data || []);
      } catch (e) {
        const needle = q.toLowerCase();
        byId("demo-banner").style.display = "block";
        renderAssets(DEMO_ASSETS.filter(function (a) { return a.address.toLowerCase().indexOf(needle) >= 0; }));
      }
    }

    function renderFactors() {
      byId("factors").innerHTML = FACTORS.map(function (f) {
        return '<div class="factor"><span class="name">' + esc(f.name) + '</span>' +
          '<span class="bar"><span class="fill" style="display:block;width:' + (f.score * 10) + '%"></span></span>' +
          '<span class="badge ' + esc(f.tier) + '">' + f.score.toFixed(1) + '</span></div>';
      }).join("");
    }

    function renderNode(n) {
      const flags = (n.flags || []).map(function (f) { return '<span class="flag">' + esc(f) + '</span>'; }).join("");
      let out = '<li>' + esc(n.name) + '<span class="kind">' + esc(n.kind) +
        (n.company_number ? " " + esc(n.company_number) : "") +
        (n.role ? " " + esc(n.role) : "") + '</span>' + flags +
        (n.registered_office ? '<div class="muted">' + esc(n.registered_office) + '</div>' : "");
      const children = (n.owners || []).concat(n.officers || []);
      if (children.length) {
        out += '<ul>' + children.map(renderNode).join("") + '</ul>';
      }
      return out + '</li>';
    }

    function renderCharges(c) {
      const s = c.summary || {};
      byId("charges-summary").textContent = (s.total || 0) + " charges, " + (s.outstanding || 0) +
        " outstanding, " + (s.part_satisfied || 0) + " part satisfied, " + (s.satisfied || 0) + " satisfied";
      byId("charges-timeline").innerHTML = (c.timeline || []).map(function (e) {
        return '<li><span class="date">' + esc(e.date) + '</span>' + esc(e.event) + ': ' + esc(e.description) +
          ' <span class="muted">' + esc((e.persons_entitled || []).join(", ")) + '</span></li>';
      }).join("") || '<li class="muted">No registered charges.</li>';
    }

    async function loadComparables(asset) {
      byId("comps-list").innerHTML = "";
      if (!asset.postcode) {
        byId("comps-summary").textContent = "No postcode recorded for this asset.";
        return;
      }
      byId("comps-summary").textContent = "Loading sales in " + asset.postcode + "...";
      try {
        const res = await getJSON("/api/comparables?postcode=" + encodeURIComponent(asset.postcode));
        const avg = res.meta.avg_price_per_sqft;
        byId("comps-summary").textContent = res.meta.count + " recent sales in " + res.meta.postcode + ", " +
          res.meta.matched + " sized via EPC" + (avg != null ? ", average " + avg + " per sq ft" : "");
        byId("comps-list").innerHTML = (res.data || []).map(function (c) {
          return '<li><span class="date">' + esc(c.transfer_date) + '</span>' + esc(c.full_address) + ': ' +
            esc(c.price_paid) + (c.price_per_sqft != null ? ' <span class="muted">' + esc(c.price_per_sqft) + ' per sq ft</span>' : "") + '</li>';
        }).join("") || '<li class="muted">No recorded sales.</li>';
      } catch (e) {
        byId("comps-summary").textContent = "Comparables unavailable: " + e.message;
      }
    }

    async function openDossier(asset) {
      byId("dossier-empty").hidden = true;
      byId("dossier-body").hidden = false;
      byId("dossier-title").textContent = asset.address;
      byId("dossier-risk").innerHTML = badge(asset.risk) + ' <span class="muted">band ' + esc(asset.asset_rating_band || "-") + '</span>';
      renderFactors();
      byId("structure").innerHTML = "";
      byId("charges-summary").textContent = "";
      byId("charges-timeline").innerHTML = "";
      loadComparables(asset);

      if (!asset.company_number) {
        byId("structure").innerHTML = '<p class="muted">No registered owner linked to this asset.</p>';
        return;
      }
      try {
        const res = await getJSON("/api/companies/" + encodeURIComponent(asset.company_number) + "/dossier");
        byId("structure").innerHTML = '<ul>' + renderNode(res.data.structure.root) + '</ul>' +
          '<p class="muted">source: ' + esc(res.meta.source) + '</p>';
        renderCharges(res.data.charges);
      } catch (e) {
        byId("structure").innerHTML = '<p class="muted">Dossier unavailable: ' + esc(e.message) + '</p>';
      }
    }

    byId("search-form").addEventListener("submit", function (ev) {
      ev.preventDefault();
      search(byId("search-q").value.trim());
    });

    loadStatus();
    loadAssets();
  </script>
</body>
</html>
`
